package kafka

import (
	"context"
	"encoding/json"
	"time"

	segmentio "github.com/segmentio/kafka-go"

	"tradeforge-core/internal/platform/corrid"
)

// WriterConfig configures one topic-scoped Writer, mirroring the fields the
// teacher's cache.RedisConfig exposes for its client.
type WriterConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	RequiredAcks int           `yaml:"requiredAcks"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
}

// Writer publishes JSON-encoded payloads to a single topic, stamping the
// correlation id carried on ctx (if any) as a message header.
type Writer struct {
	w *segmentio.Writer
}

func NewWriter(cfg WriterConfig) *Writer {
	acks := segmentio.RequireAll
	switch cfg.RequiredAcks {
	case 0:
		acks = segmentio.RequireNone
	case 1:
		acks = segmentio.RequireOne
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &Writer{w: &segmentio.Writer{
		Addr:         segmentio.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &segmentio.Hash{},
		RequiredAcks: acks,
		BatchTimeout: batchTimeout,
	}}
}

// Publish writes one message keyed by key, JSON-encoding payload.
func (w *Writer) Publish(ctx context.Context, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	headers := []segmentio.Header{}
	if id := corrid.FromContext(ctx); id != "" {
		headers = append(headers, segmentio.Header{Key: "correlation_id", Value: []byte(id)})
	}
	return w.w.WriteMessages(ctx, segmentio.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
	})
}

func (w *Writer) Close() error {
	return w.w.Close()
}
