// Package publish forwards newly stored locations to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

// LocationEvent is the JSON payload written for each inserted location.
type LocationEvent struct {
	ID           string            `json:"id"`
	Kind         string            `json:"osm_type"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Address      string            `json:"address"`
	Category     string            `json:"category"`
	RiskLevel    string            `json:"risk_level"`
	BuildingType string            `json:"building_type"`
	Tags         map[string]string `json:"tags,omitempty"`
	ScrapedAt    time.Time         `json:"scraped_at"`
}

func newLocationEvent(loc models.Location) LocationEvent {
	return LocationEvent{
		ID:           loc.StableID,
		Kind:         string(loc.Kind),
		Title:        loc.Title,
		Description:  loc.Description,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Address:      loc.Address,
		Category:     loc.Category.Key(),
		RiskLevel:    loc.RiskLevel.Key(),
		BuildingType: loc.BuildingType,
		Tags:         loc.RawTags,
		ScrapedAt:    loc.ScrapedAt,
	}
}

// KafkaWriter produces location events to a Kafka topic.
type KafkaWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

func NewKafkaWriter(brokers []string, topic string, logger *slog.Logger) *KafkaWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaWriter{writer: w, logger: logger}
}

// PublishBatch writes all locations in a single WriteMessages call. Keys are
// stable ids so every event for a location lands on the same partition.
func (w *KafkaWriter) PublishBatch(ctx context.Context, locations []models.Location) error {
	if len(locations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(locations))
	for i := range locations {
		msg, err := serializeToMessage(locations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d locations: %w", len(msgs), err)
	}
	w.logger.Debug("published locations", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *KafkaWriter) Close() error {
	return w.writer.Close()
}

func serializeToMessage(loc models.Location) (kafkago.Message, error) {
	data, err := json.Marshal(newLocationEvent(loc))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize location: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(loc.StableID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(loc.Category.Key())},
			{Key: "risk_level", Value: []byte(loc.RiskLevel.Key())},
			{Key: "scraped_at", Value: []byte(loc.ScrapedAt.Format(time.RFC3339))},
		},
	}, nil
}
