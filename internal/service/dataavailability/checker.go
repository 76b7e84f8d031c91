// Package dataavailability answers, from one AvailabilityStore call,
// whether a backtest over [start, end] has enough base candles and
// indicator coverage to run.
package dataavailability

import (
	"context"
	"fmt"
	"time"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
)

// Checker wraps an AvailabilityStore with the runnability decision from
// spec §4.3.
type Checker struct {
	store repository.AvailabilityStore
}

func NewChecker(store repository.AvailabilityStore) *Checker {
	return &Checker{store: store}
}

// Report is the checker's verdict plus the raw counts behind it, so the
// orchestrator can compose a precise user-facing message on failure.
type Report struct {
	Runnable             bool
	MissingIndicatorKeys []string
	MaxLookback          int
	repository.AvailabilityResult
}

// Check queries availability for the given window and indicator keys and
// decides runnability: both period bounds must be present and
// lookback_candles_count must reach max_lookback. Missing/partial indicator
// coverage does not itself block running — it is reported so the caller
// (the orchestrator) can decide whether to request indicator calculation.
func (c *Checker) Check(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time, maxLookback int, indicatorKeys []string) (Report, error) {
	res, err := c.store.CheckAvailability(ctx, ticker, tf, start, end, maxLookback, indicatorKeys)
	if err != nil {
		return Report{}, fmt.Errorf("dataavailability: check availability: %w", err)
	}

	runnable := res.PeriodFirstCandle != nil && res.PeriodLastCandle != nil && res.LookbackCandlesCount >= maxLookback

	var missing []string
	for _, key := range indicatorKeys {
		if res.IndicatorCoverage[key] <= 0 {
			missing = append(missing, key)
		}
	}

	return Report{
		Runnable:             runnable,
		MissingIndicatorKeys: missing,
		MaxLookback:          maxLookback,
		AvailabilityResult:   res,
	}, nil
}

// InsufficientLookbackMessage renders the user-facing message spec §4.3
// requires when lookback_candles_count < max_lookback.
func (r Report) InsufficientLookbackMessage() string {
	earliest := "unknown"
	if r.PeriodFirstCandle != nil {
		earliest = r.PeriodFirstCandle.Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"insufficient lookback: min_required=%d available=%d earliest_available_candle=%s",
		r.MaxLookback, r.LookbackCandlesCount, earliest,
	)
}
