package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/logger"
)

func newTestClient(url string, cache Cache) *Client {
	return NewClient(url, "test-token", time.Second, cache, logger.NewWriterLogger(io.Discard))
}

func TestReverseGeocode_UsesFirstFeatureAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/-122.419400,37.774900.json"), r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"place_name":"San Francisco, California, United States","center":[-122.42,37.77]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	ctx := context.Background()

	assert.Equal(t, "San Francisco, California, United States", c.ReverseGeocode(ctx, 37.7749, -122.4194))
	assert.Equal(t, "San Francisco, California, United States", c.ReverseGeocode(ctx, 37.77491, -122.41941))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "rounded key hits the cache")
}

func TestReverseGeocode_FallbackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	c := newTestClient(srv.URL, cache)

	assert.Equal(t, "37.7749, -122.4194", c.ReverseGeocode(context.Background(), 37.7749, -122.4194))
	_, cached := cache.Get(context.Background(), CacheKey(37.7749, -122.4194))
	assert.False(t, cached, "fallbacks are not cached")
}

func TestReverseGeocode_NoFeaturesFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	assert.Equal(t, "1.0000, 2.0000", c.ReverseGeocode(context.Background(), 1, 2))
}

func TestReverseGeocode_CancelledContextFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(srv.URL, nil)
	assert.Equal(t, "1.0000, 2.0000", c.ReverseGeocode(ctx, 1, 2))
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"features":[
			{"place_name":"Salinas, California","center":[-121.65,36.67]},
			{"place_name":"broken"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	places, err := c.Search(context.Background(), "salinas")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, Place{Name: "Salinas, California", Longitude: -121.65, Latitude: 36.67}, places[0])

	places, err = c.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Hour)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "1.0000,2.0000")
	assert.False(t, ok)

	cache.Set(ctx, "1.0000,2.0000", "Somewhere")
	v, ok := cache.Get(ctx, "1.0000,2.0000")
	assert.True(t, ok)
	assert.Equal(t, "Somewhere", v)

	mr.FastForward(2 * time.Hour)
	_, ok = cache.Get(ctx, "1.0000,2.0000")
	assert.False(t, ok, "entries expire")
}
