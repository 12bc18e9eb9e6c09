package publish

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

func TestSerializeToMessage(t *testing.T) {
	scraped := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	loc := models.Location{
		StableID:     "w456",
		Kind:         models.KindWay,
		Title:        "Abandoned Factory",
		Description:  "Building type: Factory",
		Latitude:     42.5,
		Longitude:    -83.1,
		Address:      "42.500000, -83.100000",
		Category:     models.CategoryRuins,
		RiskLevel:    models.RiskHigh,
		BuildingType: "factory",
		RawTags:      map[string]string{"building": "factory"},
		ScrapedAt:    scraped,
	}

	msg, err := serializeToMessage(loc)
	require.NoError(t, err)

	assert.Equal(t, []byte("w456"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "category", msg.Headers[0].Key)
	assert.Equal(t, "ruins", string(msg.Headers[0].Value))
	assert.Equal(t, "high", string(msg.Headers[1].Value))
	assert.Equal(t, "2024-06-01T12:00:00Z", string(msg.Headers[2].Value))

	var event LocationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "w456", event.ID)
	assert.Equal(t, "way", event.Kind)
	assert.Equal(t, "ruins", event.Category)
	assert.Equal(t, "high", event.RiskLevel)
	assert.Equal(t, "factory", event.Tags["building"])
	assert.True(t, scraped.Equal(event.ScrapedAt))
}

func TestKafkaWriter_PublishEmptyBatch(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "locations", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	assert.NoError(t, w.PublishBatch(context.Background(), nil))
}
