package sink

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/resilience"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Kafka publishes each record as a JSON event keyed by its query, so every
// match of one query lands on the same partition. A flush interrupted by
// cancellation keeps its buffer; any other failure drops it.
type Kafka struct {
	pub     Publisher
	buffer  []kafka.Event
	metrics *metrics.Metrics
}

func NewKafka(pub Publisher, m *metrics.Metrics) *Kafka {
	return &Kafka{pub: pub, metrics: m}
}

func (k *Kafka) Write(_ context.Context, records []join.Record) error {
	for _, r := range records {
		k.buffer = append(k.buffer, kafka.Event{Key: r.Query, Value: r})
	}
	return nil
}

func (k *Kafka) Flush(ctx context.Context) error {
	if len(k.buffer) == 0 {
		return nil
	}
	err := resilience.Retry(ctx, "kafka-publish", resilience.RetryConfig{AttemptTimeout: 30 * time.Second}, func(ctx context.Context) error {
		return k.pub.PublishBatch(ctx, k.buffer)
	})
	if k.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		k.metrics.SinkFlushesTotal.WithLabelValues("kafka", status).Inc()
	}
	if err != nil && ctx.Err() != nil {
		return err
	}
	// a batch that exhausted its retries is reported once and dropped, so it
	// does not ride along with the next message's records
	k.buffer = k.buffer[:0]
	return err
}
