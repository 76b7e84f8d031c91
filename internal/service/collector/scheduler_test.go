package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
)

type fakeTickerLister struct {
	tickers []domain.Ticker
	err     error
}

func (f *fakeTickerLister) ActiveTickers(ctx context.Context, market string) ([]domain.Ticker, error) {
	return f.tickers, f.err
}

func TestTick_EnqueuesOneTaskPerTickerTimeframe(t *testing.T) {
	tickers := &fakeTickerLister{tickers: []domain.Ticker{{Symbol: "RELIANCE"}, {Symbol: "TCS"}}}
	tasks := &fakeTaskPublisher{}
	s := NewScheduler(tickers, tasks, &fakeCheckpointStore{}, &fakeCandleStoreWorker{}, "NSE", []domain.Timeframe{domain.Timeframe1Min, domain.Timeframe1Day}, false)

	err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks.published, 4)
}

func TestTick_StateSyncSkipsWhenCacheIsFresh(t *testing.T) {
	tickers := &fakeTickerLister{tickers: []domain.Ticker{{Symbol: "RELIANCE"}}}
	tasks := &fakeTaskPublisher{}
	checkpoints := &fakeCheckpointStore{ok: true}
	candles := &fakeCandleStoreWorker{}
	s := NewScheduler(tickers, tasks, checkpoints, candles, "NSE", []domain.Timeframe{domain.Timeframe1Min}, true)

	err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checkpoints.set)
	assert.Len(t, tasks.published, 1)
}

func TestTick_StateSyncBackfillsFromAnalyticalStoreWhenCacheReadFails(t *testing.T) {
	maxBegin := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	tickers := &fakeTickerLister{tickers: []domain.Ticker{{Symbol: "RELIANCE"}}}
	tasks := &fakeTaskPublisher{}
	checkpoints := &fakeCheckpointStore{err: assert.AnError}
	candles := &fakeCandleStoreWorker{maxBegin: maxBegin, maxOK: true}
	s := NewScheduler(tickers, tasks, checkpoints, candles, "NSE", []domain.Timeframe{domain.Timeframe1Min}, true)

	err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, checkpoints.set, 1)
	assert.True(t, checkpoints.set[0].Equal(maxBegin))
}

func TestTick_PropagatesTickerListError(t *testing.T) {
	tickers := &fakeTickerLister{err: assert.AnError}
	s := NewScheduler(tickers, &fakeTaskPublisher{}, &fakeCheckpointStore{}, &fakeCandleStoreWorker{}, "NSE", nil, false)

	err := s.Tick(context.Background())
	assert.Error(t, err)
}

func TestTick_PublishFailureDoesNotAbortRemainingTickers(t *testing.T) {
	tickers := &fakeTickerLister{tickers: []domain.Ticker{{Symbol: "RELIANCE"}, {Symbol: "TCS"}}}
	tasks := &fakeTaskPublisher{err: assert.AnError}
	s := NewScheduler(tickers, tasks, &fakeCheckpointStore{}, &fakeCandleStoreWorker{}, "NSE", []domain.Timeframe{domain.Timeframe1Min}, false)

	err := s.Tick(context.Background())
	assert.NoError(t, err)
}
