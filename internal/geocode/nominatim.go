// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eytandecker/flightcam/pkg/types"
)

// Resolver turns an address into a coordinate. Failures are *types.LookupError
// wrapping ErrEmptyAddress, ErrNotFound or ErrUpstream.
type Resolver interface {
	Lookup(ctx context.Context, address string) (types.Coordinate, error)
}

// Config holds Nominatim client settings.
type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a client for the service at cfg.URL.
func NewNominatim(cfg Config) *Nominatim {
	return &Nominatim{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup returns the best match for address.
func (n *Nominatim) Lookup(ctx context.Context, address string) (types.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: ErrEmptyAddress}
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	apiURL := n.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: fmt.Errorf("%w: %w", ErrUpstream, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)}
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: fmt.Errorf("%w: decode response: %w", ErrUpstream, err)}
	}
	if len(results) == 0 {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: ErrNotFound}
	}

	c, err := results[0].coordinate()
	if err != nil {
		return types.Coordinate{}, &types.LookupError{Address: address, Err: fmt.Errorf("%w: %w", ErrUpstream, err)}
	}
	return c, nil
}

func (r searchResult) coordinate() (types.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("parse lat %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("parse lon %q: %w", r.Lon, err)
	}
	c := types.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return types.Coordinate{}, fmt.Errorf("result out of range: %+v", c)
	}
	return c, nil
}
