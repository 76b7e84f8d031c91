package backtest

import (
	"context"
	"encoding/json"
	"time"

	"tradeforge-core/internal/analytics/strategyeval"
	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/internal/service/indicatorresolver"
)

// buildFrame joins the base candle window with every indicator series the
// strategy references into a strategyeval.Frame plus the parallel
// begin/low/high/close arrays the simulator steps through.
func buildFrame(ctx context.Context, indicators repository.IndicatorStore, job *domain.BacktestJob, resolution indicatorresolver.Resolution, candles []domain.Candle) (strategyeval.Frame, []time.Time, []float64, []float64, []float64, error) {
	n := len(candles)
	begin := make([]time.Time, n)
	low := make([]float64, n)
	high := make([]float64, n)
	close := make([]float64, n)
	for i, c := range candles {
		begin[i] = c.Begin
		low[i] = c.Low
		high[i] = c.High
		close[i] = c.Close
	}

	seriesByKey := make(map[string][]float64, len(resolution.Requirements))
	lookbackStart := job.StartDate
	if n > 0 {
		lookbackStart = candles[0].Begin
	}

	for _, req := range resolution.Requirements {
		points, err := indicators.GetSeries(ctx, job.Ticker, job.Timeframe, req.Key, lookbackStart, job.EndDate)
		if err != nil {
			return strategyeval.Frame{}, nil, nil, nil, nil, err
		}
		seriesByKey[req.Key] = alignSeries(begin, points)
	}

	return strategyeval.Frame{Len: n, Indicators: seriesByKey}, begin, low, high, close, nil
}

// alignSeries maps a sparse indicator series onto the dense candle index
// space, leaving NaN where no point exists for a given begin timestamp.
func alignSeries(begin []time.Time, points []domain.IndicatorSeriesPoint) []float64 {
	byBegin := make(map[int64]float64, len(points))
	for _, p := range points {
		byBegin[p.Begin.Unix()] = p.Value
	}
	out := make([]float64, len(begin))
	for i, t := range begin {
		if v, ok := byBegin[t.Unix()]; ok {
			out[i] = v
		} else {
			out[i] = nanValue()
		}
	}
	return out
}

func nanValue() float64 {
	var z float64
	return z / z
}

func parseConfig(raw []byte, cfg *domain.BacktestConfig) error {
	return json.Unmarshal(raw, cfg)
}
