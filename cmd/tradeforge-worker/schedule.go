package main

import (
	"context"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository/cache"
	"tradeforge-core/internal/repository/clickhouse"
	"tradeforge-core/internal/repository/postgres"
	"tradeforge-core/internal/service/collector"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// runSchedule runs C7's Scheduler half: a cron-triggered tick that lists
// active tickers and enqueues one CollectorTask per (ticker, timeframe).
func runSchedule(ctx context.Context, a *app.Application) error {
	tickers := postgres.NewTickerRepository(a.Postgres)
	checkpoints := cache.NewCheckpointStore(a.Redis)
	candles := clickhouse.NewCandleStore(a.ClickHouse)

	tasks := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      a.Config.CollectorConsumer.Brokers,
		Topic:        kafka.TopicCollectorTasks,
		RequiredAcks: 1,
	})
	defer tasks.Close()

	timeframes := make([]domain.Timeframe, 0, len(a.Config.SchedulerTimeframes))
	for _, tf := range a.Config.SchedulerTimeframes {
		timeframes = append(timeframes, domain.Timeframe(tf))
	}

	scheduler := collector.NewScheduler(tickers, tasks, checkpoints, candles, a.Config.SchedulerMarket, timeframes, a.Config.SchedulerStateSync)
	if err := scheduler.Start(ctx, a.Config.SchedulerCron); err != nil {
		return err
	}
	log.Info("schedule: cron %q running for market %s", a.Config.SchedulerCron, a.Config.SchedulerMarket)

	<-ctx.Done()
	scheduler.Stop()
	return nil
}
