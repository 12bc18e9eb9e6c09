// Package geocode resolves place names to coordinates and coordinates to
// addresses using a Nominatim server.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/abandoned-explorer/internal/metrics"
)

// Result is a single geocoding match. A zero Result means no match.
type Result struct {
	Lat         float64
	Lon         float64
	DisplayName string
}

// Found reports whether the lookup matched anything.
func (r Result) Found() bool {
	return r.DisplayName != ""
}

// Geocoder is implemented by the Nominatim client and the cache decorator.
type Geocoder interface {
	Search(ctx context.Context, query string) (Result, error)
	Reverse(ctx context.Context, lat, lon float64) (Result, error)
}

// Client implements Geocoder against the Nominatim HTTP API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: m,
		logger:  logger,
	}
}

// Search forward-geocodes a free-form place name, keeping the best match.
func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	var places []place
	if err := c.get(ctx, "/search?"+params.Encode(), &places); err != nil {
		c.observe("forward", "error")
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}
	if len(places) == 0 {
		c.observe("forward", "empty")
		return Result{}, nil
	}

	result, err := places[0].result()
	if err != nil {
		c.observe("forward", "error")
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}
	c.observe("forward", "success")
	return result, nil
}

// Reverse looks up the address nearest to a coordinate.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Result, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format": {"jsonv2"},
	}

	var p place
	if err := c.get(ctx, "/reverse?"+params.Encode(), &p); err != nil {
		c.observe("reverse", "error")
		return Result{}, fmt.Errorf("reverse %.6f,%.6f: %w", lat, lon, err)
	}
	// Nominatim answers 200 with an error body when nothing is nearby.
	if p.Error != "" || p.DisplayName == "" {
		c.observe("reverse", "empty")
		return Result{}, nil
	}

	result, err := p.result()
	if err != nil {
		c.observe("reverse", "error")
		return Result{}, fmt.Errorf("reverse %.6f,%.6f: %w", lat, lon, err)
	}
	c.observe("reverse", "success")
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(method, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

// Nominatim response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p place) result() (Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return Result{Lat: lat, Lon: lon, DisplayName: p.DisplayName}, nil
}
