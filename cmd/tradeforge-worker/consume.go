package main

import (
	"context"
	"fmt"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/platform/consumer"
	"tradeforge-core/internal/repository/cache"
	"tradeforge-core/internal/repository/clickhouse"
	"tradeforge-core/internal/service/collector"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// runConsume runs C7's Worker half: one consumer over TopicCollectorTasks
// that pages the upstream feed per task, republishing a task verbatim when
// more pages remain (see collector.Worker.AsHandler).
func runConsume(ctx context.Context, a *app.Application) error {
	checkpoints := cache.NewCheckpointStore(a.Redis)
	candles := clickhouse.NewCandleStore(a.ClickHouse)
	worker := collector.NewWorker(checkpoints, candles, a.Upstream)

	tasks := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      a.Config.CollectorConsumer.Brokers,
		Topic:        kafka.TopicCollectorTasks,
		RequiredAcks: 1,
	})
	defer tasks.Close()

	cfg := consumer.Config{
		Brokers:               a.Config.CollectorConsumer.Brokers,
		Topic:                 a.Config.CollectorConsumer.Topic,
		GroupID:               a.Config.CollectorConsumer.GroupID,
		MaxConcurrentMessages: a.Config.CollectorConsumer.MaxConcurrentMessages,
		HandlerTimeout:        a.Config.CollectorConsumer.HandlerTimeout,
		SlowOpThreshold:       a.Config.CollectorConsumer.SlowOpThreshold,
		UseDLQ:                a.Config.CollectorConsumer.UseDLQ,
		ShutdownDrain:         a.Config.CollectorConsumer.ShutdownDrain,
	}
	c := consumer.New(cfg, worker.AsHandler(tasks))
	log.Info("consume: starting collector worker on topic %s", cfg.Topic)
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	return nil
}
