package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/abandoned-explorer/internal/metrics"
)

// Element is one feature in an Overpass JSON response. Which coordinate
// fields are set depends on Type and the "out" mode.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Center   *Point            `json:"center,omitempty"`
	Geometry []Point           `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Response struct {
	Elements []Element `json:"elements"`
	Remark   string    `json:"remark,omitempty"`
}

// Counts tallies elements by type.
func (r *Response) Counts() (nodes, ways, relations int) {
	for _, e := range r.Elements {
		switch e.Type {
		case "node":
			nodes++
		case "way":
			ways++
		case "relation":
			relations++
		}
	}
	return nodes, ways, relations
}

type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewClient(endpoint, userAgent string, timeout time.Duration, clock clockwork.Clock, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock:   clock,
		metrics: m,
		logger:  logger,
	}
}

// Execute posts the query to the interpreter and decodes the result.
func (c *Client) Execute(ctx context.Context, q Query) (*Response, error) {
	form := url.Values{"data": {q.Text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data Response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if c.metrics != nil {
		c.metrics.QueryDuration.Observe(c.clock.Since(start).Seconds())
		c.metrics.ElementsFetched.Add(float64(len(data.Elements)))
	}

	// Overpass reports runtime errors (timeouts, memory) as a remark on a 200.
	if data.Remark != "" {
		c.logger.Warn("overpass remark", "remark", data.Remark)
	}

	nodes, ways, relations := data.Counts()
	c.logger.Info("overpass query complete",
		"scope", q.Scope.String(), "nodes", nodes, "ways", ways, "relations", relations)
	return &data, nil
}
