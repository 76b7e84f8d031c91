package main

import (
	"context"
	"fmt"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/platform/consumer"
	"tradeforge-core/internal/repository/cache"
	"tradeforge-core/internal/repository/clickhouse"
	"tradeforge-core/internal/repository/postgres"
	"tradeforge-core/internal/service/rtpipeline"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// runConsumeRT runs C6: one strictly single-threaded consumer over
// TopicCandlesRaw. Per spec §9's RT-ordering invariant, MaxConcurrentMessages
// must be 1 — ValidateRTConcurrency rejects any other value at startup.
func runConsumeRT(ctx context.Context, a *app.Application) error {
	if err := a.Config.ValidateRTConcurrency(); err != nil {
		return err
	}

	rollingContexts := cache.NewRollingContextStore(a.Redis)
	candles := clickhouse.NewCandleStore(a.ClickHouse)
	indicators := clickhouse.NewIndicatorStore(a.ClickHouse)
	hotSet := postgres.NewHotIndicatorRepository(a.Postgres)
	out := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      a.Config.RTConsumer.Brokers,
		Topic:        kafka.TopicCandlesProcessedRT,
		RequiredAcks: 2,
	})
	defer out.Close()

	pipeline := rtpipeline.New(rollingContexts, candles, indicators, hotSet, out)

	cfg := consumer.Config{
		Brokers:               a.Config.RTConsumer.Brokers,
		Topic:                 a.Config.RTConsumer.Topic,
		GroupID:               a.Config.RTConsumer.GroupID,
		MaxConcurrentMessages: a.Config.RTConsumer.MaxConcurrentMessages,
		HandlerTimeout:        a.Config.RTConsumer.HandlerTimeout,
		SlowOpThreshold:       a.Config.RTConsumer.SlowOpThreshold,
		UseDLQ:                a.Config.RTConsumer.UseDLQ,
		ShutdownDrain:         a.Config.RTConsumer.ShutdownDrain,
	}
	c := consumer.New(cfg, pipeline.Handle)
	log.Info("consume-rt: starting on topic %s", cfg.Topic)
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("consume-rt: %w", err)
	}
	return nil
}
