package main

import (
	"context"
	"fmt"

	"tradeforge-core/cmd/tradeforge-worker/app"
	"tradeforge-core/internal/platform/consumer"
	"tradeforge-core/internal/repository/clickhouse"
	"tradeforge-core/internal/repository/postgres"
	"tradeforge-core/internal/service/backtest"
	"tradeforge-core/internal/service/dataavailability"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// runConsumeBacktest runs C4: one consumer over TopicBacktestRequests. A
// message with Status == "" is a fresh submission (CHECK_DATA runs); a
// terminal Status re-enters the same job's state machine after a C5 round
// trip, per spec §4.5's re-entrance rule.
func runConsumeBacktest(ctx context.Context, a *app.Application) error {
	jobs := postgres.NewBacktestRepository(a.Postgres)
	tickers := postgres.NewTickerRepository(a.Postgres)
	batches := postgres.NewBatchRepository(a.Postgres)
	candles := clickhouse.NewCandleStore(a.ClickHouse)
	indicators := clickhouse.NewIndicatorStore(a.ClickHouse)
	availability := dataavailability.NewChecker(clickhouse.NewAvailabilityStore(a.ClickHouse))

	indicatorReqs := kafka.NewIndicatorRequestPublisher(kafka.NewWriter(kafka.WriterConfig{
		Brokers:      a.Config.BacktestConsumer.Brokers,
		Topic:        kafka.TopicIndicatorCalcRequest,
		RequiredAcks: 2,
	}))

	orch := &backtest.Orchestrator{
		Jobs:          jobs,
		Tickers:       tickers,
		Availability:  availability,
		Candles:       candles,
		Indicators:    indicators,
		IndicatorReqs: indicatorReqs,
		Batches:       batches,
	}

	handle := func(ctx context.Context, req kafka.BacktestRequest, correlationID string) error {
		switch req.Status {
		case kafka.BacktestRequestStatusNone:
			return orch.Process(ctx, req.JobID, false)
		case kafka.BacktestRequestStatusCalculationSuccess:
			return orch.HandleIndicatorCalculationResponse(ctx, req.JobID, true)
		case kafka.BacktestRequestStatusCalculationFailure:
			return orch.HandleIndicatorCalculationResponse(ctx, req.JobID, false)
		default:
			return fmt.Errorf("consume-backtest: unknown status %q for job %s", req.Status, req.JobID)
		}
	}

	cfg := consumer.Config{
		Brokers:               a.Config.BacktestConsumer.Brokers,
		Topic:                 a.Config.BacktestConsumer.Topic,
		GroupID:               a.Config.BacktestConsumer.GroupID,
		MaxConcurrentMessages: a.Config.BacktestConsumer.MaxConcurrentMessages,
		HandlerTimeout:        a.Config.BacktestConsumer.HandlerTimeout,
		SlowOpThreshold:       a.Config.BacktestConsumer.SlowOpThreshold,
		UseDLQ:                a.Config.BacktestConsumer.UseDLQ,
		ShutdownDrain:         a.Config.BacktestConsumer.ShutdownDrain,
	}
	c := consumer.New(cfg, handle)
	log.Info("consume-backtest: starting on topic %s", cfg.Topic)
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("consume-backtest: %w", err)
	}
	return nil
}
