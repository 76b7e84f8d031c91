package collector

import (
	"context"
	"fmt"
	"time"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/pkg/apperrors"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
	"tradeforge-core/pkg/upstream"
)

// UpstreamClient is the paging candle feed the worker polls.
type UpstreamClient interface {
	FetchCandles(ctx context.Context, ticker, timeframe string, from time.Time) (upstream.CandlesResponse, error)
}

// Worker consumes collector tasks and pages the upstream feed for one
// (ticker, timeframe) pair per invocation, per spec §4.7's Worker steps.
// Handle's return value is a "remaining count": callers should republish
// the same task verbatim when it is > 0. internal/platform/consumer.Handler
// returns only an error; AsHandler adapts Handle to it and does the
// republishing.
type Worker struct {
	Checkpoints repository.CheckpointStore
	Candles     repository.CandleStore
	Upstream    UpstreamClient
}

func NewWorker(checkpoints repository.CheckpointStore, candles repository.CandleStore, up UpstreamClient) *Worker {
	return &Worker{Checkpoints: checkpoints, Candles: candles, Upstream: up}
}

// Handle processes one CollectorTask, returning the number of further
// upstream pages believed outstanding (0 means this ticker/timeframe is
// caught up for now).
func (w *Worker) Handle(ctx context.Context, task kafka.CollectorTask, correlationID string) (int, error) {
	tfRaw, _ := task.Params["timeframe"].(string)
	tf := domain.Timeframe(tfRaw)
	if !tf.Valid() {
		return 0, apperrors.NewValidationError(fmt.Sprintf("collector worker: invalid timeframe %q", tfRaw), nil)
	}

	from, err := w.checkpoint(ctx, task.Ticker, tf)
	if err != nil {
		return 0, apperrors.NewRetryableError("collector worker: checkpoint lookup failed", err)
	}

	page, err := w.Upstream.FetchCandles(ctx, task.Ticker, string(tf), from)
	if err != nil {
		return 0, apperrors.NewRetryableError("collector worker: upstream fetch failed", err)
	}

	if len(page.Candles) == 0 {
		return 0, nil
	}

	candles := make([]domain.Candle, 0, len(page.Candles))
	maxBegin := from
	for _, c := range page.Candles {
		candle := domain.Candle{
			Ticker: task.Ticker, Timeframe: tf,
			Begin: c.Begin, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: float64(c.Volume),
		}
		if err := candle.Validate(); err != nil {
			log.Warn("collector worker: dropping invalid candle for %s/%s at %s: %v", task.Ticker, tf, c.Begin, err)
			continue
		}
		candles = append(candles, candle)
		if candle.Begin.After(maxBegin) {
			maxBegin = candle.Begin
		}
	}

	if len(candles) == 0 {
		return 0, nil
	}

	if err := w.Candles.UpsertBatch(ctx, candles); err != nil {
		return 0, apperrors.NewRetryableError("collector worker: upsert failed", err)
	}
	if err := w.Checkpoints.Set(ctx, task.Ticker, tf, maxBegin); err != nil {
		return 0, apperrors.NewRetryableError("collector worker: checkpoint update failed", err)
	}

	if page.More {
		return 1, nil
	}
	return 0, nil
}

// checkpoint reads the last collected candle begin from cache, falling
// back to the analytical store's max(begin) on cache error.
func (w *Worker) checkpoint(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, error) {
	begin, ok, err := w.Checkpoints.Get(ctx, ticker, tf)
	if err == nil && ok {
		return begin, nil
	}

	maxBegin, ok, err := w.Candles.MaxBegin(ctx, ticker, tf)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	return maxBegin, nil
}
