package rtpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
	"tradeforge-core/pkg/kafka"
)

type fakeRollingContextStore struct {
	rc      *domain.RollingContext
	getErr  error
	setErr  error
	setCnt  int
}

func (f *fakeRollingContextStore) Get(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.RollingContext, error) {
	return f.rc, f.getErr
}

func (f *fakeRollingContextStore) Set(ctx context.Context, rc *domain.RollingContext) error {
	f.setCnt++
	f.rc = rc
	return f.setErr
}

type fakeCandleStoreRT struct {
	lastN []domain.Candle
	err   error
}

func (f *fakeCandleStoreRT) UpsertBatch(ctx context.Context, candles []domain.Candle) error { return nil }
func (f *fakeCandleStoreRT) GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeCandleStoreRT) GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	return f.lastN, f.err
}
func (f *fakeCandleStoreRT) MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeIndicatorStoreRT struct {
	upserted []domain.IndicatorSeriesPoint
	err      error
}

func (f *fakeIndicatorStoreRT) UpsertBatch(ctx context.Context, points []domain.IndicatorSeriesPoint) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, points...)
	return nil
}
func (f *fakeIndicatorStoreRT) GetSeries(ctx context.Context, ticker string, tf domain.Timeframe, indicatorKey string, start, end time.Time) ([]domain.IndicatorSeriesPoint, error) {
	return nil, nil
}
func (f *fakeIndicatorStoreRT) Coverage(ctx context.Context, ticker string, tf domain.Timeframe, keys []string, start, end time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeHotSet struct {
	defs []domain.IndicatorDef
	err  error
}

func (f *fakeHotSet) HotIndicators(ctx context.Context, ticker string, tf domain.Timeframe) ([]domain.IndicatorDef, error) {
	return f.defs, f.err
}

type fakePublisher struct {
	published []kafka.ProcessedCandle
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload.(kafka.ProcessedCandle))
	return nil
}

func seedRollingContext(n int) *domain.RollingContext {
	rc := domain.NewRollingContext("RELIANCE", domain.Timeframe1Min, domain.DefaultRollingContextSize)
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100.0 + float64(i%5)
		rc.Append(domain.Candle{
			Ticker: "RELIANCE", Timeframe: domain.Timeframe1Min,
			Begin: start.Add(time.Duration(i) * time.Minute),
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000,
		})
	}
	return rc
}

func rawCandle() kafka.RawCandle {
	return kafka.RawCandle{
		Ticker: "RELIANCE", Timeframe: "1min",
		Begin: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Open: 103, High: 104, Low: 102, Close: 103.5, Volume: 1200,
	}
}

func TestHandle_AppendsComputesAndPublishes(t *testing.T) {
	rc := seedRollingContext(30)
	contexts := &fakeRollingContextStore{rc: rc}
	indicators := &fakeIndicatorStoreRT{}
	hotSet := &fakeHotSet{defs: []domain.IndicatorDef{{Name: "sma", Params: map[string]float64{"timeperiod": 5}}}}
	pub := &fakePublisher{}
	p := New(contexts, &fakeCandleStoreRT{}, indicators, hotSet, pub)

	err := p.Handle(context.Background(), rawCandle(), "corr-1")
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Contains(t, pub.published[0].Indicators, "sma_timeperiod_5")
	assert.NotEmpty(t, indicators.upserted)
	assert.Equal(t, 1, contexts.setCnt)
	assert.Equal(t, 31, rc.Len())
}

func TestHandle_FallsBackToAnalyticalStoreOnCacheMiss(t *testing.T) {
	contexts := &fakeRollingContextStore{getErr: assert.AnError}
	candles := &fakeCandleStoreRT{lastN: seedRollingContext(10).Candles}
	pub := &fakePublisher{}
	p := New(contexts, candles, &fakeIndicatorStoreRT{}, &fakeHotSet{}, pub)

	err := p.Handle(context.Background(), rawCandle(), "corr-2")
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
}

func TestHandle_InvalidCandleRejected(t *testing.T) {
	p := New(&fakeRollingContextStore{rc: seedRollingContext(5)}, &fakeCandleStoreRT{}, &fakeIndicatorStoreRT{}, &fakeHotSet{}, &fakePublisher{})

	bad := rawCandle()
	bad.Close = 0
	err := p.Handle(context.Background(), bad, "corr-3")
	assert.Error(t, err)
}

func TestHandle_InvalidTimeframeRejected(t *testing.T) {
	p := New(&fakeRollingContextStore{}, &fakeCandleStoreRT{}, &fakeIndicatorStoreRT{}, &fakeHotSet{}, &fakePublisher{})

	bad := rawCandle()
	bad.Timeframe = "bogus"
	err := p.Handle(context.Background(), bad, "corr-4")
	assert.Error(t, err)
}

func TestHandle_HotIndicatorComputeFailureSkipsButContinues(t *testing.T) {
	rc := seedRollingContext(2) // too short for sma_20's lookback
	pub := &fakePublisher{}
	hotSet := &fakeHotSet{defs: []domain.IndicatorDef{{Name: "sma", Params: map[string]float64{"timeperiod": 20}}}}
	p := New(&fakeRollingContextStore{rc: rc}, &fakeCandleStoreRT{}, &fakeIndicatorStoreRT{}, hotSet, pub)

	err := p.Handle(context.Background(), rawCandle(), "corr-5")
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Empty(t, pub.published[0].Indicators)
}

func TestHandle_PublishFailureIsRetryable(t *testing.T) {
	pub := &fakePublisher{err: assert.AnError}
	p := New(&fakeRollingContextStore{rc: seedRollingContext(5)}, &fakeCandleStoreRT{}, &fakeIndicatorStoreRT{}, &fakeHotSet{}, pub)

	err := p.Handle(context.Background(), rawCandle(), "corr-6")
	assert.Error(t, err)
}
