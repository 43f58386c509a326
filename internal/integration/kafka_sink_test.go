//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/storm-lightning-align/internal/adapter/kafka"
	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

const testTopic = "aligned-rows-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-broker Kafka container and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func sampleOutput() domain.StormOutput {
	mid := time.Date(2022, 9, 28, 6, 15, 0, 0, time.UTC)
	shear := 11.2
	rows := make([]domain.Row, 3)
	for i := range rows {
		m := mid.Add(time.Duration(i) * 30 * time.Minute)
		rows[i] = domain.Row{
			Bin: domain.Bin{
				Start: m.Add(-15 * time.Minute),
				Mid:   m,
				End:   m.Add(15 * time.Minute),
			},
			Lat:        25.0 + float64(i)*0.3,
			Lon:        -80.0 - float64(i)*0.4,
			Scalars:    map[string]*float64{"shear_mag": &shear, "shear_dir": nil},
			EventCount: int64(i * 7),
			Aggregates: map[string]float64{"energy_sum": float64(i) * 1e-15},
		}
	}
	return domain.StormOutput{
		Code:       "AL092022",
		Name:       "IAN",
		Year:       2022,
		Rows:       rows,
		ProducedAt: time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestKafkaSink verifies that WriteStorm publishes one keyed message per
// row through a real broker.
func TestKafkaSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	sink := kafkaadapter.NewSink([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = sink.Close() })

	out := sampleOutput()
	require.NoError(t, sink.WriteStorm(ctx, out))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i, row := range out.Rows {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read message %d", i)

		wantKey := fmt.Sprintf("%s|%s", out.Code, row.Bin.Mid.Format(time.RFC3339))
		assert.Equal(t, wantKey, string(msg.Key))

		var decoded struct {
			Storm      string             `json:"storm"`
			BinMid     time.Time          `json:"bin_mid"`
			EventCount int64              `json:"event_count"`
			Aggregates map[string]float64 `json:"aggregates"`
		}
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, out.Code, decoded.Storm)
		assert.True(t, decoded.BinMid.Equal(row.Bin.Mid))
		assert.Equal(t, row.EventCount, decoded.EventCount)
		assert.InDelta(t, row.Aggregates["energy_sum"], decoded.Aggregates["energy_sum"], 1e-24)
	}

	// No extra messages beyond one per row.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected exactly one message per row")
}
