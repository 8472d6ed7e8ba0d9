package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sharecrop/internal/logger"
)

var ErrNoResults = errors.New("geocoder returned no results")

// Place is a forward-search result.
type Place struct {
	Name      string  `json:"place_name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type featureCollection struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Client talks to a Mapbox-compatible geocoding API.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
	Cache       Cache
	Logger      *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, cache Cache, log *logger.Logger) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: token,
		HTTP:        &http.Client{Timeout: timeout},
		Cache:       cache,
		Logger:      log,
	}
}

// CacheKey rounds coordinates to four decimals.
func CacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// Fallback is the place name used when the lookup fails.
func Fallback(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// ReverseGeocode resolves a place name, falling back to the formatted
// coordinates on any failure. Fallbacks are not cached.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	key := CacheKey(lat, lng)
	if name, ok := c.Cache.Get(ctx, key); ok {
		return name
	}

	name, err := c.lookup(ctx, lat, lng)
	if err != nil {
		c.Logger.Warn("GEOCODE", fmt.Sprintf("Reverse geocoding %s failed: %v", key, err))
		return Fallback(lat, lng)
	}
	c.Cache.Set(ctx, key, name)
	return name
}

func (c *Client) lookup(ctx context.Context, lat, lng float64) (string, error) {
	path := fmt.Sprintf("%s/%f,%f.json", c.BaseURL, lng, lat)
	fc, err := c.get(ctx, path, url.Values{"types": {"place,locality,neighborhood"}})
	if err != nil {
		return "", err
	}
	if len(fc.Features) == 0 || fc.Features[0].PlaceName == "" {
		return "", ErrNoResults
	}
	return fc.Features[0].PlaceName, nil
}

// Search returns up to five places matching query.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Place{}, nil
	}
	path := fmt.Sprintf("%s/%s.json", c.BaseURL, url.PathEscape(query))
	fc, err := c.get(ctx, path, url.Values{
		"limit": {"5"},
		"types": {"place,locality,neighborhood,address"},
	})
	if err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if len(f.Center) != 2 {
			continue
		}
		places = append(places, Place{Name: f.PlaceName, Longitude: f.Center[0], Latitude: f.Center[1]})
	}
	return places, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*featureCollection, error) {
	if c.AccessToken != "" {
		params.Set("access_token", c.AccessToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}
	return &fc, nil
}
