// Package consumer is the generic message-runtime skeleton (C9): a Kafka
// consumer loop parameterized by a typed payload, generalized from the
// teacher's internal/analytics/concurrency/worker_pool.go (bounded
// concurrency, atomic metrics, graceful shutdown) from an in-process task
// queue to a Kafka-polling loop.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"tradeforge-core/internal/platform/corrid"
	"tradeforge-core/pkg/apperrors"
	"tradeforge-core/pkg/log"
)

// Handler processes one decoded message. Returning an *apperrors.FatalError
// skips retry entirely; *apperrors.RetryableError is retried per
// Config.RetryDelays, and an *apperrors.BacktestExecutionError with Timeout
// true is retried once; any other error is treated as fatal.
type Handler[T any] func(ctx context.Context, msg T, correlationID string) error

// Config configures one Consumer[T] instance.
type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	MaxConcurrentMessages int
	HandlerTimeout      time.Duration
	SlowOpThreshold      time.Duration
	RetryDelays          []time.Duration
	UseDLQ               bool
	ShutdownDrain        time.Duration
}

// DefaultRetryDelays matches spec §4.9's default backoff schedule.
var DefaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}

func (c *Config) setDefaults() {
	if c.MaxConcurrentMessages <= 0 {
		c.MaxConcurrentMessages = 1
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 30 * time.Second
	}
	if c.SlowOpThreshold <= 0 {
		c.SlowOpThreshold = 15 * time.Second
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = DefaultRetryDelays
	}
	if c.ShutdownDrain <= 0 {
		c.ShutdownDrain = 30 * time.Second
	}
}

// Metrics mirrors the shape of the teacher's WorkerPoolMetrics, adapted to
// a consumer loop's vocabulary.
type Metrics struct {
	MessagesReceived  int64
	MessagesSucceeded int64
	MessagesFailed    int64
	MessagesDLQed     int64
	InFlight          int64
}

// Consumer polls Topic with bounded concurrency, validates and decodes
// each message into T, propagates a correlation id, applies timeout and
// slow-op decorators around Handle, retries RetryableError with backoff,
// and publishes exhausted/invalid messages to the DLQ topic.
type Consumer[T any] struct {
	cfg    Config
	reader *kafka.Reader
	dlq    *kafka.Writer
	handle Handler[T]

	sem chan struct{}
	wg  sync.WaitGroup

	received  int64
	succeeded int64
	failed    int64
	dlqed     int64
	inFlight  int64

	// commitSeq enforces in-order offset commits across concurrent
	// in-flight messages: a partition's offsets are only committed up to
	// the highest contiguous completed sequence number, never skipping
	// ahead of a predecessor still in flight.
	commitSeq *sequencer
}

func New[T any](cfg Config, handle Handler[T]) *Consumer[T] {
	cfg.setDefaults()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	var dlq *kafka.Writer
	if cfg.UseDLQ {
		dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic + ".failed",
			Balancer: &kafka.LeastBytes{},
		}
	}
	return &Consumer[T]{
		cfg:       cfg,
		reader:    reader,
		dlq:       dlq,
		handle:    handle,
		sem:       make(chan struct{}, cfg.MaxConcurrentMessages),
		commitSeq: newSequencer(),
	}
}

// Run polls until ctx is cancelled, then drains in-flight handlers for up
// to Config.ShutdownDrain before returning.
func (c *Consumer[T]) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("consumer: fetch message: %w", err)
		}

		seq := c.commitSeq.next()
		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			c.commitSeq.abandon(seq)
			goto drain
		}

		c.wg.Add(1)
		atomic.AddInt64(&c.inFlight, 1)
		go func(m kafka.Message, seq uint64) {
			defer c.wg.Done()
			defer func() { <-c.sem }()
			defer atomic.AddInt64(&c.inFlight, -1)
			c.process(ctx, m, seq)
		}(m, seq)
	}

drain:
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownDrain):
		log.Warn("consumer shutdown drain timed out for topic %s", c.cfg.Topic)
	}
	return c.reader.Close()
}

func (c *Consumer[T]) process(ctx context.Context, m kafka.Message, seq uint64) {
	atomic.AddInt64(&c.received, 1)

	correlationID := headerValue(m.Headers, "correlation_id")
	ctx = corrid.WithCorrelationID(ctx, correlationID)
	correlationID = corrid.FromContext(ctx)

	var payload T
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		c.toDLQ(ctx, m, fmt.Sprintf("decode error: %v", err))
		atomic.AddInt64(&c.failed, 1)
		c.commitSeq.complete(seq, func() { c.commit(ctx, m) })
		return
	}

	err := c.invokeWithRetry(ctx, payload, correlationID)
	if err != nil {
		c.toDLQ(ctx, m, err.Error())
		atomic.AddInt64(&c.failed, 1)
	} else {
		atomic.AddInt64(&c.succeeded, 1)
	}
	c.commitSeq.complete(seq, func() { c.commit(ctx, m) })
}

func (c *Consumer[T]) invokeWithRetry(ctx context.Context, payload T, correlationID string) error {
	attempt := 0
	for {
		err := c.invokeOnce(ctx, payload, correlationID)
		if err == nil {
			return nil
		}
		if _, ok := err.(*apperrors.ValidationError); ok {
			return err
		}
		if _, ok := err.(*apperrors.FatalError); ok {
			return err
		}
		if !apperrors.IsRetryable(err) {
			return err
		}
		// A simulation timeout gets a single retry; a second timeout is fatal.
		if be, ok := err.(*apperrors.BacktestExecutionError); ok && be.Timeout && attempt >= 1 {
			return apperrors.NewFatalError("simulation timed out again after one retry", err)
		}
		if attempt >= len(c.cfg.RetryDelays) {
			if c.cfg.UseDLQ {
				return apperrors.NewMaxRetriesExceededError(attempt, err)
			}
			return apperrors.NewMaxRetriesExceededError(attempt, err)
		}
		delay := c.cfg.RetryDelays[attempt]
		log.Warn("consumer[%s] correlation_id=%s: retrying attempt %d after %s: %v",
			c.cfg.Topic, correlationID, attempt+1, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		attempt++
	}
}

func (c *Consumer[T]) invokeOnce(ctx context.Context, payload T, correlationID string) error {
	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.handle(hctx, payload, correlationID)
	}()

	select {
	case err := <-errCh:
		if d := time.Since(start); d > c.cfg.SlowOpThreshold {
			log.Warn("consumer[%s] correlation_id=%s: slow handler took %s", c.cfg.Topic, correlationID, d)
		}
		return err
	case <-hctx.Done():
		return apperrors.NewRetryableError("handler timed out", hctx.Err())
	}
}

func (c *Consumer[T]) toDLQ(ctx context.Context, m kafka.Message, reason string) {
	if !c.cfg.UseDLQ || c.dlq == nil {
		return
	}
	failed := kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: append(m.Headers, kafka.Header{Key: "dlq_reason", Value: []byte(reason)}),
	}
	if err := c.dlq.WriteMessages(ctx, failed); err != nil {
		log.Error("consumer[%s]: failed to publish to DLQ: %v", c.cfg.Topic, err)
		return
	}
	atomic.AddInt64(&c.dlqed, 1)
}

func (c *Consumer[T]) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Error("consumer[%s]: commit failed: %v", c.cfg.Topic, err)
	}
}

func (c *Consumer[T]) Metrics() Metrics {
	return Metrics{
		MessagesReceived:  atomic.LoadInt64(&c.received),
		MessagesSucceeded: atomic.LoadInt64(&c.succeeded),
		MessagesFailed:    atomic.LoadInt64(&c.failed),
		MessagesDLQed:     atomic.LoadInt64(&c.dlqed),
		InFlight:          atomic.LoadInt64(&c.inFlight),
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// newBackoffFrom adapts Config.RetryDelays into a cenkalti/backoff
// exponential policy. The consumer's own retry loop does not use it; it
// follows the fixed RetryDelays schedule, and nothing in this package calls
// newBackoffFrom.
func newBackoffFrom(delays []time.Duration) backoff.BackOff {
	if len(delays) == 0 {
		delays = DefaultRetryDelays
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     delays[0],
		RandomizationFactor: 0.1,
		Multiplier:          2,
		MaxInterval:         delays[len(delays)-1],
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}
