// Package rtpipeline implements the RT Indicator Pipeline (C6): a strict
// single-threaded-per-partition consumer that appends each incoming raw
// candle to a cached rolling context, computes the hot indicator set,
// persists the enriched row, and republishes it downstream. Grounded on
// spec §4.6's numbered steps; the cache-with-analytical-store-fallback
// pattern mirrors original_source/.../repositories/redis_state.py, widened
// from "last collected date" to "last N candles".
package rtpipeline

import (
	"context"
	"time"

	"tradeforge-core/internal/analytics/indicatorcompute"
	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/pkg/apperrors"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/log"
)

// HotIndicatorSource lists the indicators the RT pipeline must keep
// materialized for a (ticker, timeframe) pair.
type HotIndicatorSource interface {
	HotIndicators(ctx context.Context, ticker string, tf domain.Timeframe) ([]domain.IndicatorDef, error)
}

// Publisher emits the enriched candle downstream, keyed by ticker:timeframe.
type Publisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// Pipeline wires the rolling-context cache (with analytical-store
// fallback), the hot indicator set, the indicator series store, and the
// downstream publisher together into the per-candle pipeline.
type Pipeline struct {
	RollingContexts repository.RollingContextStore
	Candles         repository.CandleStore
	Indicators      repository.IndicatorStore
	HotSet          HotIndicatorSource
	Out             Publisher
}

func New(rollingContexts repository.RollingContextStore, candles repository.CandleStore, indicators repository.IndicatorStore, hotSet HotIndicatorSource, out Publisher) *Pipeline {
	return &Pipeline{RollingContexts: rollingContexts, Candles: candles, Indicators: indicators, HotSet: hotSet, Out: out}
}

// Handle implements the five numbered steps of spec §4.6 for one raw
// candle. It must run strictly single-threaded per (ticker, timeframe)
// partition — enforced at the consumer layer, not here.
func (p *Pipeline) Handle(ctx context.Context, raw kafka.RawCandle, correlationID string) error {
	tf := domain.Timeframe(raw.Timeframe)
	if !tf.Valid() {
		return apperrors.NewValidationError("rtpipeline: invalid timeframe "+raw.Timeframe, nil)
	}

	candle := domain.Candle{
		Ticker: raw.Ticker, Timeframe: tf, Begin: raw.Begin,
		Open: raw.Open, High: raw.High, Low: raw.Low, Close: raw.Close,
		Volume: float64(raw.Volume), Value: raw.Value,
	}
	if err := candle.Validate(); err != nil {
		return apperrors.NewValidationError("rtpipeline: invalid candle", err)
	}

	rc, degraded, err := p.loadRollingContext(ctx, raw.Ticker, tf)
	if err != nil {
		return apperrors.NewRetryableError("rtpipeline: rolling context unavailable", err)
	}
	if degraded {
		log.Warn("rtpipeline: degraded path for %s/%s, fell back to analytical store for rolling context", raw.Ticker, tf)
	}
	rc.Append(candle)

	hotDefs, err := p.HotSet.HotIndicators(ctx, raw.Ticker, tf)
	if err != nil {
		return apperrors.NewRetryableError("rtpipeline: failed to load hot indicator set", err)
	}

	closes := rc.Closes()
	highs, lows := highsLows(rc)

	enriched := make(map[string]float64, len(hotDefs))
	points := make([]domain.IndicatorSeriesPoint, 0, len(hotDefs))
	now := time.Now()
	for _, def := range hotDefs {
		value, err := indicatorcompute.Compute(def, closes, highs, lows)
		if err != nil {
			log.Warn("rtpipeline: skipping %s for %s/%s: %v", def.Key(), raw.Ticker, tf, err)
			continue
		}
		enriched[def.Key()] = value
		points = append(points, domain.IndicatorSeriesPoint{
			Ticker: raw.Ticker, Timeframe: tf, IndicatorKey: def.Key(),
			Begin: candle.Begin, Value: value, WrittenAt: now,
		})
	}

	if len(points) > 0 {
		if err := p.Indicators.UpsertBatch(ctx, points); err != nil {
			return apperrors.NewRetryableError("rtpipeline: failed to persist indicator series", err)
		}
	}

	if err := p.RollingContexts.Set(ctx, rc); err != nil {
		log.Warn("rtpipeline: best-effort rolling context update failed for %s/%s: %v", raw.Ticker, tf, err)
	}

	out := kafka.ProcessedCandle{RawCandle: raw, Indicators: enriched}
	key := raw.Ticker + ":" + raw.Timeframe
	if err := p.Out.Publish(ctx, key, out); err != nil {
		return apperrors.NewRetryableError("rtpipeline: failed to publish enriched candle", err)
	}
	return nil
}

// loadRollingContext loads the cached rolling context, falling back to the
// analytical store's last-N-candles read on cache error (the "degraded
// path" spec §4.6 calls out, adding 50-100ms).
func (p *Pipeline) loadRollingContext(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.RollingContext, bool, error) {
	rc, err := p.RollingContexts.Get(ctx, ticker, tf)
	if err == nil && rc != nil {
		return rc, false, nil
	}

	candles, fallbackErr := p.Candles.GetLastN(ctx, ticker, tf, domain.DefaultRollingContextSize)
	if fallbackErr != nil {
		if err != nil {
			return nil, false, err
		}
		return nil, false, fallbackErr
	}
	rc = domain.NewRollingContext(ticker, tf, domain.DefaultRollingContextSize)
	for _, c := range candles {
		rc.Append(c)
	}
	return rc, true, nil
}

func highsLows(rc *domain.RollingContext) ([]float64, []float64) {
	highs := make([]float64, rc.Len())
	lows := make([]float64, rc.Len())
	for i, c := range rc.Candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	return highs, lows
}
