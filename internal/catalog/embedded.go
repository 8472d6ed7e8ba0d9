package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

//go:embed demo_listings.json
var demoListings []byte

// EmbeddedProvider serves the bundled demo catalog. It can simulate a slow
// or failing network to exercise the caller's fallback path.
type EmbeddedProvider struct {
	SimulateFailure bool
	Latency         time.Duration
}

func NewEmbeddedProvider(simulateFailure bool, latency time.Duration) *EmbeddedProvider {
	return &EmbeddedProvider{SimulateFailure: simulateFailure, Latency: latency}
}

func (p *EmbeddedProvider) GetListings(ctx context.Context) (*ListingsResponse, error) {
	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.SimulateFailure {
		return nil, fmt.Errorf("embedded catalog: %w", ErrCatalogUnavailable)
	}

	var resp ListingsResponse
	if err := json.Unmarshal(demoListings, &resp); err != nil {
		return nil, fmt.Errorf("decode embedded catalog: %w", err)
	}
	return &resp, nil
}
