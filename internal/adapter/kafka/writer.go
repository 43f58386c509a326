// Package kafka publishes aligned rows to a Kafka topic, one message per
// row.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// messageWriter is the slice of kafka-go's Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink writes one storm's rows as a single batch. Messages are keyed
// storm|bin-mid so re-runs of a storm compact cleanly.
type Sink struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSink creates a Sink publishing to the given brokers and topic.
func NewSink(brokers []string, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// WriteStorm publishes every row of the storm in one WriteMessages call.
func (s *Sink) WriteStorm(ctx context.Context, out domain.StormOutput) error {
	msgs := make([]kafkago.Message, len(out.Rows))
	for i, row := range out.Rows {
		msg, err := serializeRow(out, row)
		if err != nil {
			return fmt.Errorf("serialize row %d of %s: %w", i, out.Code, err)
		}
		msgs[i] = msg
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s: %w", out.Code, err)
	}
	s.logger.Debug("storm published", "storm", out.Code, "messages", len(msgs))
	return nil
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}

// rowMessage is the wire shape of one aligned row. Missing scalars encode
// as JSON null.
type rowMessage struct {
	Storm      string              `json:"storm"`
	Name       string              `json:"name"`
	Year       int                 `json:"year"`
	BinStart   time.Time           `json:"bin_start"`
	BinMid     time.Time           `json:"bin_mid"`
	BinEnd     time.Time           `json:"bin_end"`
	Lat        float64             `json:"lat"`
	Lon        float64             `json:"lon"`
	Clamped    bool                `json:"clamped"`
	Scalars    map[string]*float64 `json:"scalars"`
	EventCount int64               `json:"event_count"`
	Aggregates map[string]float64  `json:"aggregates"`
	ProducedAt time.Time           `json:"produced_at"`
}

func serializeRow(out domain.StormOutput, row domain.Row) (kafkago.Message, error) {
	value, err := json.Marshal(rowMessage{
		Storm:      out.Code,
		Name:       out.Name,
		Year:       out.Year,
		BinStart:   row.Bin.Start,
		BinMid:     row.Bin.Mid,
		BinEnd:     row.Bin.End,
		Lat:        row.Lat,
		Lon:        row.Lon,
		Clamped:    row.Clamped,
		Scalars:    row.Scalars,
		EventCount: row.EventCount,
		Aggregates: row.Aggregates,
		ProducedAt: out.ProducedAt,
	})
	if err != nil {
		return kafkago.Message{}, err
	}

	key := fmt.Sprintf("%s|%s", out.Code, row.Bin.Mid.UTC().Format(time.RFC3339))
	return kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "schema", Value: []byte("aligned-row/v1")},
		},
	}, nil
}
