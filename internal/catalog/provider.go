// Package catalog supplies the demo listings that seed the marketplace map.
package catalog

import (
	"context"
	"errors"
)

// RawListing is a catalog record as published, before normalization.
type RawListing = map[string]any

// ListingsResponse mirrors the catalog wire shape {"data": {"listings": [...]}}.
type ListingsResponse struct {
	Data struct {
		Listings []RawListing `json:"listings"`
	} `json:"data"`
}

// Provider fetches the seed catalog. Callers must tolerate failures.
type Provider interface {
	GetListings(ctx context.Context) (*ListingsResponse, error)
}

var ErrCatalogUnavailable = errors.New("catalog unavailable")
