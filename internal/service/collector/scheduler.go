// Package collector implements the market-data Collector (C7): a leaf
// Scheduler that enqueues per-(ticker, timeframe) collection tasks on a
// cron trigger, and a Worker that pages an upstream feed and upserts the
// results. Grounded on the teacher's internal/service/trading_calendar_service.go
// and group_execution_scheduler.go ticker-driven scheduling idiom, adapted
// from an in-process ticker loop to a robfig/cron-triggered publish loop.
package collector

import (
	"context"

	"github.com/robfig/cron/v3"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// TaskPublisher publishes a CollectorTask keyed by "ticker:task_type".
type TaskPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// TickerLister enumerates the active tickers a market's schedule applies to.
type TickerLister interface {
	ActiveTickers(ctx context.Context, market string) ([]domain.Ticker, error)
}

const taskTypeCollectCandles = "collect_candles"

// Scheduler is the cron-triggered leaf described in spec §4.7: on each
// invocation it lists active tickers and enqueues one collection task per
// (ticker, timeframe), optionally preceded by a state sync pass.
type Scheduler struct {
	Tickers     TickerLister
	Tasks       TaskPublisher
	Checkpoints repository.CheckpointStore
	Candles     repository.CandleStore

	Market      string
	Timeframes  []domain.Timeframe
	StateSync   bool

	cron *cron.Cron
}

func NewScheduler(tickers TickerLister, tasks TaskPublisher, checkpoints repository.CheckpointStore, candles repository.CandleStore, market string, timeframes []domain.Timeframe, stateSync bool) *Scheduler {
	return &Scheduler{
		Tickers:     tickers,
		Tasks:       tasks,
		Checkpoints: checkpoints,
		Candles:     candles,
		Market:      market,
		Timeframes:  timeframes,
		StateSync:   stateSync,
		cron:        cron.New(),
	}
}

// Start registers Tick on spec and begins running the cron loop in the
// background. Call Stop to end it.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Tick(ctx); err != nil {
			log.Error("collector scheduler: tick failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Tick runs one scheduling pass: an optional state sync, then one task
// enqueue per (ticker, timeframe).
func (s *Scheduler) Tick(ctx context.Context) error {
	tickers, err := s.Tickers.ActiveTickers(ctx, s.Market)
	if err != nil {
		return err
	}

	for _, t := range tickers {
		for _, tf := range s.Timeframes {
			if s.StateSync {
				if err := s.syncCheckpoint(ctx, t.Symbol, tf); err != nil {
					log.Warn("collector scheduler: state sync failed for %s/%s: %v", t.Symbol, tf, err)
				}
			}
			task := kafka.CollectorTask{
				TaskType: taskTypeCollectCandles,
				Ticker:   t.Symbol,
				Params:   map[string]interface{}{"timeframe": string(tf)},
			}
			key := t.Symbol + ":" + taskTypeCollectCandles
			if err := s.Tasks.Publish(ctx, key, task); err != nil {
				log.Error("collector scheduler: failed to publish task for %s/%s: %v", t.Symbol, tf, err)
			}
		}
	}
	return nil
}

// syncCheckpoint writes the analytical store's max(begin) into the cache
// checkpoint whenever the cache value is stale (older than max(begin)) or
// missing, per spec §4.7.
func (s *Scheduler) syncCheckpoint(ctx context.Context, ticker string, tf domain.Timeframe) error {
	maxBegin, ok, err := s.Candles.MaxBegin(ctx, ticker, tf)
	if err != nil || !ok {
		return err
	}

	cached, cacheOK, err := s.Checkpoints.Get(ctx, ticker, tf)
	if err == nil && cacheOK && !cached.Before(maxBegin) {
		return nil
	}
	return s.Checkpoints.Set(ctx, ticker, tf, maxBegin)
}
