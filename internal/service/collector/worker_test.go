package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/upstream"
)

type fakeCheckpointStore struct {
	begin time.Time
	ok    bool
	err   error
	set   []time.Time
}

func (f *fakeCheckpointStore) Get(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	return f.begin, f.ok, f.err
}

func (f *fakeCheckpointStore) Set(ctx context.Context, ticker string, tf domain.Timeframe, lastBegin time.Time) error {
	f.set = append(f.set, lastBegin)
	return nil
}

type fakeCandleStoreWorker struct {
	upserted []domain.Candle
	maxBegin time.Time
	maxOK    bool
	maxErr   error
}

func (f *fakeCandleStoreWorker) UpsertBatch(ctx context.Context, candles []domain.Candle) error {
	f.upserted = append(f.upserted, candles...)
	return nil
}
func (f *fakeCandleStoreWorker) GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeCandleStoreWorker) GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeCandleStoreWorker) MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	return f.maxBegin, f.maxOK, f.maxErr
}

type fakeUpstream struct {
	resp upstream.CandlesResponse
	err  error
}

func (f *fakeUpstream) FetchCandles(ctx context.Context, ticker, timeframe string, from time.Time) (upstream.CandlesResponse, error) {
	return f.resp, f.err
}

func task() kafka.CollectorTask {
	return kafka.CollectorTask{TaskType: "collect_candles", Ticker: "RELIANCE", Params: map[string]interface{}{"timeframe": "1min"}}
}

func TestHandle_UpsertsAndAdvancesCheckpoint(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	up := &fakeUpstream{resp: upstream.CandlesResponse{
		Candles: []upstream.Candle{
			{Begin: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
			{Begin: start.Add(time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 1100},
		},
		More: false,
	}}
	checkpoints := &fakeCheckpointStore{}
	candles := &fakeCandleStoreWorker{}
	w := NewWorker(checkpoints, candles, up)

	remaining, err := w.Handle(context.Background(), task(), "corr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Len(t, candles.upserted, 2)
	require.Len(t, checkpoints.set, 1)
	assert.True(t, checkpoints.set[0].Equal(start.Add(time.Minute)))
}

func TestHandle_MorePagesReportsOneRemaining(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	up := &fakeUpstream{resp: upstream.CandlesResponse{
		Candles: []upstream.Candle{{Begin: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000}},
		More:    true,
	}}
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, up)

	remaining, err := w.Handle(context.Background(), task(), "corr-2")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestHandle_EmptyPageReportsDone(t *testing.T) {
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, &fakeUpstream{})

	remaining, err := w.Handle(context.Background(), task(), "corr-3")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestHandle_DropsInvalidCandlesButKeepsValid(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	up := &fakeUpstream{resp: upstream.CandlesResponse{
		Candles: []upstream.Candle{
			{Begin: start, Open: 0, High: 0, Low: 0, Close: 0, Volume: 0}, // invalid
			{Begin: start.Add(time.Minute), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		},
	}}
	candles := &fakeCandleStoreWorker{}
	w := NewWorker(&fakeCheckpointStore{}, candles, up)

	_, err := w.Handle(context.Background(), task(), "corr-4")
	require.NoError(t, err)
	assert.Len(t, candles.upserted, 1)
}

func TestHandle_InvalidTimeframeRejected(t *testing.T) {
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, &fakeUpstream{})

	bad := task()
	bad.Params = map[string]interface{}{"timeframe": "bogus"}
	_, err := w.Handle(context.Background(), bad, "corr-5")
	assert.Error(t, err)
}

func TestHandle_ChecksCacheThenAnalyticalStoreForCheckpoint(t *testing.T) {
	maxBegin := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	checkpoints := &fakeCheckpointStore{err: assert.AnError}
	candles := &fakeCandleStoreWorker{maxBegin: maxBegin, maxOK: true}
	var fetchedFrom time.Time
	up := &fakeUpstreamCapture{capture: &fetchedFrom}
	w := NewWorker(checkpoints, candles, up)

	_, err := w.Handle(context.Background(), task(), "corr-6")
	require.NoError(t, err)
	assert.True(t, fetchedFrom.Equal(maxBegin))
}

type fakeUpstreamCapture struct {
	capture *time.Time
}

func (f *fakeUpstreamCapture) FetchCandles(ctx context.Context, ticker, timeframe string, from time.Time) (upstream.CandlesResponse, error) {
	*f.capture = from
	return upstream.CandlesResponse{}, nil
}

func TestHandle_UpstreamFetchFailureIsRetryable(t *testing.T) {
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, &fakeUpstream{err: assert.AnError})

	_, err := w.Handle(context.Background(), task(), "corr-7")
	assert.Error(t, err)
}
