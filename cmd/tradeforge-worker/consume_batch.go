package main

import (
	"context"
	"fmt"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/platform/consumer"
	"tradeforge-core/internal/repository/clickhouse"
	"tradeforge-core/internal/service/batchindicator"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// runConsumeBatch runs the consumer side of C5: computes every indicator
// named in an IndicatorCalculationRequest over its historical window and
// notifies the orchestrator via a re-entrant BacktestRequest event.
func runConsumeBatch(ctx context.Context, a *app.Application) error {
	candles := clickhouse.NewCandleStore(a.ClickHouse)
	indicators := clickhouse.NewIndicatorStore(a.ClickHouse)
	responses := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      a.Config.BatchConsumer.Brokers,
		Topic:        kafka.TopicBacktestRequests,
		RequiredAcks: 2,
	})
	defer responses.Close()

	handler := batchindicator.New(candles, indicators, responses)

	cfg := consumer.Config{
		Brokers:               a.Config.BatchConsumer.Brokers,
		Topic:                 a.Config.BatchConsumer.Topic,
		GroupID:               a.Config.BatchConsumer.GroupID,
		MaxConcurrentMessages: a.Config.BatchConsumer.MaxConcurrentMessages,
		HandlerTimeout:        a.Config.BatchConsumer.HandlerTimeout,
		SlowOpThreshold:       a.Config.BatchConsumer.SlowOpThreshold,
		UseDLQ:                a.Config.BatchConsumer.UseDLQ,
		ShutdownDrain:         a.Config.BatchConsumer.ShutdownDrain,
	}
	c := consumer.New(cfg, handler.Handle)
	log.Info("consume-batch: starting on topic %s", cfg.Topic)
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("consume-batch: %w", err)
	}
	return nil
}
