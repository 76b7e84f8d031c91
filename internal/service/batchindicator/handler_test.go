package batchindicator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
	"tradeforge-core/pkg/kafka"
)

type fakeCandleStore struct {
	candles []domain.Candle
	err     error
}

func (f *fakeCandleStore) UpsertBatch(ctx context.Context, candles []domain.Candle) error {
	return nil
}

func (f *fakeCandleStore) GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	return f.candles, f.err
}

func (f *fakeCandleStore) GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeCandleStore) MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeIndicatorStore struct {
	upserted []domain.IndicatorSeriesPoint
	err      error
}

func (f *fakeIndicatorStore) UpsertBatch(ctx context.Context, points []domain.IndicatorSeriesPoint) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeIndicatorStore) GetSeries(ctx context.Context, ticker string, tf domain.Timeframe, indicatorKey string, start, end time.Time) ([]domain.IndicatorSeriesPoint, error) {
	return nil, nil
}

func (f *fakeIndicatorStore) Coverage(ctx context.Context, ticker string, tf domain.Timeframe, keys []string, start, end time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeResponsePublisher struct {
	published []kafka.BacktestRequest
	err       error
}

func (f *fakeResponsePublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload.(kafka.BacktestRequest))
	return nil
}

func genCandles(n int, start time.Time) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		price := 100.0 + float64(i%5)
		candles[i] = domain.Candle{
			Ticker:    "RELIANCE",
			Timeframe: domain.Timeframe1Min,
			Begin:     start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func TestHandle_ComputesAndPersistsSeries(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	candles := genCandles(50, start)
	indicators := &fakeIndicatorStore{}
	responses := &fakeResponsePublisher{}
	h := New(&fakeCandleStore{candles: candles}, indicators, responses)

	req := kafka.IndicatorCalculationRequest{
		JobID:     "job-1",
		Ticker:    "RELIANCE",
		Timeframe: "1min",
		StartDate: start,
		EndDate:   start.Add(50 * time.Minute),
		Indicators: []kafka.IndicatorSpec{
			{IndicatorKey: "sma_timeperiod_5", Name: "sma", Params: map[string]float64{"timeperiod": 5}},
		},
	}

	err := h.Handle(context.Background(), req, "corr-1")
	require.NoError(t, err)

	assert.NotEmpty(t, indicators.upserted)
	for _, p := range indicators.upserted {
		assert.Equal(t, "sma_timeperiod_5", p.IndicatorKey)
		assert.Equal(t, "RELIANCE", p.Ticker)
	}

	require.Len(t, responses.published, 1)
	assert.Equal(t, "job-1", responses.published[0].JobID)
	assert.Equal(t, kafka.BacktestRequestStatusCalculationSuccess, responses.published[0].Status)
}

func TestHandle_NoPointsProducedReportsFailure(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	candles := genCandles(3, start) // fewer candles than sma's lookback
	indicators := &fakeIndicatorStore{}
	responses := &fakeResponsePublisher{}
	h := New(&fakeCandleStore{candles: candles}, indicators, responses)

	req := kafka.IndicatorCalculationRequest{
		JobID:     "job-2",
		Ticker:    "RELIANCE",
		Timeframe: "1min",
		StartDate: start,
		EndDate:   start.Add(3 * time.Minute),
		Indicators: []kafka.IndicatorSpec{
			{IndicatorKey: "sma_timeperiod_5", Name: "sma", Params: map[string]float64{"timeperiod": 5}},
		},
	}

	err := h.Handle(context.Background(), req, "corr-2")
	require.NoError(t, err)
	assert.Empty(t, indicators.upserted)

	require.Len(t, responses.published, 1)
	assert.Equal(t, kafka.BacktestRequestStatusCalculationFailure, responses.published[0].Status)
}

func TestHandle_InvalidTimeframeRejected(t *testing.T) {
	h := New(&fakeCandleStore{}, &fakeIndicatorStore{}, &fakeResponsePublisher{})
	req := kafka.IndicatorCalculationRequest{JobID: "job-3", Ticker: "RELIANCE", Timeframe: "bogus"}

	err := h.Handle(context.Background(), req, "corr-3")
	assert.Error(t, err)
}

func TestHandle_CandleLoadFailureIsRetryable(t *testing.T) {
	responses := &fakeResponsePublisher{}
	h := New(&fakeCandleStore{err: assert.AnError}, &fakeIndicatorStore{}, responses)
	req := kafka.IndicatorCalculationRequest{JobID: "job-4", Ticker: "RELIANCE", Timeframe: "1min"}

	err := h.Handle(context.Background(), req, "corr-4")
	assert.Error(t, err)
	assert.Empty(t, responses.published)
}
