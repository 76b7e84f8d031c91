package dataavailability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
)

type fakeAvailabilityStore struct {
	result repository.AvailabilityResult
	err    error
}

func (f *fakeAvailabilityStore) CheckAvailability(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time, maxLookback int, indicatorKeys []string) (repository.AvailabilityResult, error) {
	return f.result, f.err
}

func TestCheck_RunnableWhenBoundsPresentAndLookbackSufficient(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakeAvailabilityStore{result: repository.AvailabilityResult{
		PeriodFirstCandle:    &first,
		PeriodLastCandle:     &last,
		LookbackCandlesCount: 100,
		IndicatorCoverage:    map[string]int{"rsi_timeperiod_14": 500},
	}}
	c := NewChecker(store)

	report, err := c.Check(context.Background(), "RELIANCE", domain.Timeframe1Min, first, last, 50, []string{"rsi_timeperiod_14"})
	require.NoError(t, err)
	assert.True(t, report.Runnable)
	assert.Empty(t, report.MissingIndicatorKeys)
}

func TestCheck_NotRunnableWhenLookbackInsufficient(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakeAvailabilityStore{result: repository.AvailabilityResult{
		PeriodFirstCandle:    &first,
		PeriodLastCandle:     &last,
		LookbackCandlesCount: 10,
	}}
	c := NewChecker(store)

	report, err := c.Check(context.Background(), "RELIANCE", domain.Timeframe1Min, first, last, 50, nil)
	require.NoError(t, err)
	assert.False(t, report.Runnable)
	assert.Contains(t, report.InsufficientLookbackMessage(), "min_required=50")
	assert.Contains(t, report.InsufficientLookbackMessage(), "available=10")
}

func TestCheck_NotRunnableWhenPeriodBoundsMissing(t *testing.T) {
	store := &fakeAvailabilityStore{result: repository.AvailabilityResult{LookbackCandlesCount: 100}}
	c := NewChecker(store)

	report, err := c.Check(context.Background(), "RELIANCE", domain.Timeframe1Min, time.Now(), time.Now(), 50, nil)
	require.NoError(t, err)
	assert.False(t, report.Runnable)
	assert.Contains(t, report.InsufficientLookbackMessage(), "earliest_available_candle=unknown")
}

func TestCheck_ReportsMissingIndicatorCoverageWithoutBlockingRun(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakeAvailabilityStore{result: repository.AvailabilityResult{
		PeriodFirstCandle:    &first,
		PeriodLastCandle:     &last,
		LookbackCandlesCount: 100,
		IndicatorCoverage:    map[string]int{"rsi_timeperiod_14": 0, "ema_timeperiod_9": 200},
	}}
	c := NewChecker(store)

	report, err := c.Check(context.Background(), "RELIANCE", domain.Timeframe1Min, first, last, 50, []string{"rsi_timeperiod_14", "ema_timeperiod_9"})
	require.NoError(t, err)
	assert.True(t, report.Runnable)
	assert.Equal(t, []string{"rsi_timeperiod_14"}, report.MissingIndicatorKeys)
}

func TestCheck_PropagatesStoreError(t *testing.T) {
	store := &fakeAvailabilityStore{err: assert.AnError}
	c := NewChecker(store)

	_, err := c.Check(context.Background(), "RELIANCE", domain.Timeframe1Min, time.Now(), time.Now(), 50, nil)
	assert.Error(t, err)
}
