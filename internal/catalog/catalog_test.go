package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedProvider_ReturnsDemoCatalog(t *testing.T) {
	resp, err := NewEmbeddedProvider(false, 0).GetListings(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Data.Listings)
	assert.Equal(t, "seed-tomato-valley", resp.Data.Listings[0]["id"])
}

func TestEmbeddedProvider_SimulatedFailure(t *testing.T) {
	_, err := NewEmbeddedProvider(true, 0).GetListings(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestEmbeddedProvider_LatencyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewEmbeddedProvider(false, time.Second).GetListings(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"listings":[{"id":"remote-1","name":"Remote"}]}}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPProvider(srv.URL+"/catalog", srv.Client()).GetListings(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Data.Listings, 1)
	assert.Equal(t, "remote-1", resp.Data.Listings[0]["id"])

	_, err = NewHTTPProvider(srv.URL+"/broken", srv.Client()).GetListings(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
