// Package batchindicator implements the consumer side of C5's
// indicator-compute request path: compute every requested indicator over a
// historical window and persist it, then notify the orchestrator with a
// re-entrant BacktestRequest event. Distinct from C6's rtpipeline, which
// computes the same indicator families but incrementally, one candle at a
// time, off a cached rolling context instead of a bulk historical window.
// Grounded on spec §4.5's "emit a calculation request (C5) ... the same job
// re-enters C4 upon the response event" and the technical_indicator_service.go
// batch-recompute style (load full window, compute once, write once).
package batchindicator

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

// ResponsePublisher emits the re-entrant BacktestRequest event, keyed by job_id.
type ResponsePublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// Handler computes every indicator named in an IndicatorCalculationRequest
// over its requested window and persists the resulting series.
type Handler struct {
	Candles    repository.CandleStore
	Indicators repository.IndicatorStore
	Responses  ResponsePublisher
}

func New(candles repository.CandleStore, indicators repository.IndicatorStore, responses ResponsePublisher) *Handler {
	return &Handler{Candles: candles, Indicators: indicators, Responses: responses}
}

// Handle computes and persists every indicator in req, then publishes the
// job's re-entrant BacktestRequest with a terminal calculation status. A
// per-indicator compute failure does not abort the whole request — it is
// logged and excluded from the written series — but if every requested
// indicator fails to produce a single point, the whole request is reported
// as a failure so the orchestrator doesn't proceed against empty coverage.
func (h *Handler) Handle(ctx context.Context, req kafka.IndicatorCalculationRequest, correlationID string) error {
	tf := domain.Timeframe(req.Timeframe)
	if !tf.Valid() {
		return apperrors.NewValidationError("batchindicator: invalid timeframe "+req.Timeframe, nil)
	}

	candles, err := h.Candles.GetRange(ctx, req.Ticker, tf, req.StartDate, req.EndDate)
	if err != nil {
		return apperrors.NewRetryableError("batchindicator: failed to load candle window", err)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	now := time.Now()
	var points []domain.IndicatorSeriesPoint
	anySucceeded := false
	for _, spec := range req.Indicators {
		def := domain.IndicatorDef{Name: spec.Name, Params: spec.Params}
		lookback := def.Lookback()

		indicatorSucceeded := false
		for i := lookback; i < len(candles); i++ {
			value, err := indicatorcompute.Compute(def, closes[:i+1], highs[:i+1], lows[:i+1])
			if err != nil {
				continue
			}
			points = append(points, domain.IndicatorSeriesPoint{
				Ticker: req.Ticker, Timeframe: tf, IndicatorKey: spec.IndicatorKey,
				Begin: candles[i].Begin, Value: value, WrittenAt: now,
			})
			indicatorSucceeded = true
		}
		if !indicatorSucceeded {
			log.Warn("batchindicator: job=%s indicator=%s produced no points over %d candles", req.JobID, spec.IndicatorKey, len(candles))
		}
		anySucceeded = anySucceeded || indicatorSucceeded
	}

	if len(points) > 0 {
		if err := h.Indicators.UpsertBatch(ctx, points); err != nil {
			return apperrors.NewRetryableError("batchindicator: failed to persist indicator series", err)
		}
	}

	status := kafka.BacktestRequestStatusCalculationSuccess
	if !anySucceeded {
		status = kafka.BacktestRequestStatusCalculationFailure
	}
	resp := kafka.BacktestRequest{JobID: req.JobID, Status: status}
	if err := h.Responses.Publish(ctx, req.JobID, resp); err != nil {
		return apperrors.NewRetryableError("batchindicator: failed to publish calculation response", err)
	}
	return nil
}
