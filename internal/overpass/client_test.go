package overpass

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/abandoned-explorer/internal/metrics"
	"github.com/mr1hm/abandoned-explorer/internal/models"
)

const sampleResponse = `{
  "version": 0.6,
  "elements": [
    {"type": "node", "id": 1, "lat": 42.33, "lon": -83.04, "tags": {"abandoned": "yes", "name": "Old Mill", "building": "industrial"}},
    {"type": "way", "id": 2, "center": {"lat": 42.1, "lon": -83.2}, "tags": {"building": "ruins"}},
    {"type": "way", "id": 3, "geometry": [{"lat": 1, "lon": 2}, {"lat": 3, "lon": 4}]},
    {"type": "relation", "id": 4, "tags": {"historic": "ruins"}}
  ]
}`

func testClient(url string) *Client {
	return NewClient(url, "abandoned_explorer_scraper/1.0", 5*time.Second,
		clockwork.NewFakeClock(), metrics.NewMetricsForTesting(), discardLogger())
}

func TestClient_Execute(t *testing.T) {
	q := Query{Text: BBoxQuery(models.BBox{South: 1, West: 2, North: 3, East: 4})}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "abandoned_explorer_scraper/1.0", r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, q.Text, r.PostForm.Get("data"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Execute(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, resp.Elements, 4)

	node := resp.Elements[0]
	assert.Equal(t, "node", node.Type)
	require.NotNil(t, node.Lat)
	assert.Equal(t, 42.33, *node.Lat)
	assert.Equal(t, "Old Mill", node.Tags["name"])

	assert.Equal(t, &Point{Lat: 42.1, Lon: -83.2}, resp.Elements[1].Center)
	assert.Len(t, resp.Elements[2].Geometry, 2)
	assert.Nil(t, resp.Elements[3].Center)

	nodes, ways, relations := resp.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 2, ways)
	assert.Equal(t, 1, relations)
}

func TestClient_Execute_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "rate limited")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Execute(context.Background(), Query{Text: UnscopedQuery()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Execute_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Execute(context.Background(), Query{Text: UnscopedQuery()})
	assert.Error(t, err)
}
