package kafka

import (
	"context"
	"time"

	"tradeforge-core/internal/domain"
)

// cinarIndicators names the families served by github.com/cinar/indicator;
// everything else is attributed to gonum, matching the split actually wired
// in internal/analytics (cinar for the canned TA functions, gonum for the
// regression/statistics-derived ones).
var cinarIndicators = map[string]bool{
	"rsi": true, "macd": true, "ema": true, "sma": true, "supertrend": true,
}

func libraryFor(name string) string {
	if cinarIndicators[name] {
		return "cinar"
	}
	return "gonum"
}

// IndicatorRequestPublisher publishes TopicIndicatorCalcRequest messages,
// implementing the backtest package's IndicatorRequestPublisher interface
// (C4 -> C5 request path, spec §4.5).
type IndicatorRequestPublisher struct {
	w *Writer
}

func NewIndicatorRequestPublisher(w *Writer) *IndicatorRequestPublisher {
	return &IndicatorRequestPublisher{w: w}
}

func (p *IndicatorRequestPublisher) RequestCalculation(ctx context.Context, jobID string, ticker string, tf domain.Timeframe, start, end time.Time, indicatorKeys []string) error {
	specs := make([]IndicatorSpec, 0, len(indicatorKeys))
	for _, key := range indicatorKeys {
		def, _, err := domain.ParseIndicatorKey(key)
		if err != nil {
			return err
		}
		specs = append(specs, IndicatorSpec{
			IndicatorKey: key,
			Name:         def.Name,
			Library:      libraryFor(def.Name),
			Params:       def.Params,
		})
	}
	req := IndicatorCalculationRequest{
		JobID:      jobID,
		Ticker:     ticker,
		Timeframe:  string(tf),
		StartDate:  start,
		EndDate:    end,
		Indicators: specs,
	}
	return p.w.Publish(ctx, jobID, req)
}
