// Package nominatim implements domain.Geocoder against the OSM Nominatim
// search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

// Client queries the Nominatim search endpoint. Lookups are restricted to
// Australia and throttled to at most one request per minInterval, per the
// Nominatim usage policy.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	clock      clockwork.Clock

	minInterval time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a Nominatim geocoding client.
func NewClient(baseURL, userAgent string, timeout, minInterval time.Duration, logger *slog.Logger, clock clockwork.Clock) *Client {
	return &Client{
		baseURL:     baseURL,
		userAgent:   userAgent,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		clock:       clock,
		minInterval: minInterval,
	}
}

// Geocode resolves an area name to coordinates. Returns
// domain.ErrAreaNotFound when Nominatim has no match.
func (c *Client) Geocode(ctx context.Context, name string) (domain.GeocodeResult, error) {
	if err := c.throttle(ctx); err != nil {
		return domain.GeocodeResult{}, err
	}

	params := url.Values{
		"q":            {name},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"au"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodeResult{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodeResult{}, fmt.Errorf("geocode %q: %w", name, domain.ErrAreaNotFound)
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse longitude %q: %w", p.Lon, err)
	}

	return domain.GeocodeResult{
		Geo:         domain.Geo{Lat: lat, Lon: lon},
		DisplayName: p.DisplayName,
	}, nil
}

// throttle blocks until minInterval has passed since the previous request.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Duration(0)
	now := c.clock.Now()
	if !c.lastRequest.IsZero() {
		if elapsed := now.Sub(c.lastRequest); elapsed < c.minInterval {
			wait = c.minInterval - elapsed
		}
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := c.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
