// Package indicatorcompute evaluates one IndicatorDef against a closing
// (and, for a few families, high/low) price window, returning the latest
// value — the shape the RT pipeline (C6) needs per incoming candle.
// Grounded on the teacher's technical_indicator_service.go cinar/indicator
// call sites (Sma, Ema, Rsi) for the families that library covers; macd and
// supertrend are not exposed by that library (confirmed absent from every
// teacher call site) and are computed directly, matching the teacher's own
// "custom implementation to avoid cinar/indicator precision issues" note on
// its replacement RSI path.
package indicatorcompute

import (
	"fmt"
	"math"

	"github.com/cinar/indicator"

	"tradeforge-core/internal/domain"
)

// Compute evaluates def against the trailing window (oldest first) and
// returns the value at the most recent point. Returns an error if the
// window is shorter than def's lookback requirement.
func Compute(def domain.IndicatorDef, closes, highs, lows []float64) (float64, error) {
	if len(closes) < def.Lookback() {
		return math.NaN(), fmt.Errorf("indicatorcompute: window of %d candles shorter than %s lookback %d", len(closes), def.Key(), def.Lookback())
	}

	switch def.Name {
	case "sma":
		period := int(def.Params["timeperiod"])
		values := indicator.Sma(period, closes)
		return last(values), nil
	case "ema":
		period := int(def.Params["timeperiod"])
		values := indicator.Ema(period, closes)
		return last(values), nil
	case "rsi":
		values, _ := indicator.Rsi(closes)
		return last(values), nil
	case "macd":
		fast := int(def.Params["fastperiod"])
		slow := int(def.Params["slowperiod"])
		signal := int(def.Params["signalperiod"])
		return macd(closes, fast, slow, signal), nil
	case "supertrend":
		period := int(def.Params["period"])
		multiplier := def.Params["multiplier"]
		return superTrend(highs, lows, closes, period, multiplier), nil
	default:
		return math.NaN(), fmt.Errorf("indicatorcompute: unsupported indicator family %q", def.Name)
	}
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// macd returns the MACD line's latest value: EMA(fast) - EMA(slow), itself
// smoothed is the signal line, but this pipeline only needs the MACD value
// column per spec's "ema_timeperiod..." style indicator_key convention.
func macd(closes []float64, fast, slow, signal int) float64 {
	fastEma := indicator.Ema(fast, closes)
	slowEma := indicator.Ema(slow, closes)
	n := len(fastEma)
	if len(slowEma) < n {
		n = len(slowEma)
	}
	if n == 0 {
		return math.NaN()
	}
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fastEma[len(fastEma)-n+i] - slowEma[len(slowEma)-n+i]
	}
	return last(macdLine)
}

// superTrend computes the classic ATR-based SuperTrend's latest band value.
// No library in the stack exposes this indicator, so it is computed
// directly from its textbook definition (average true range over period,
// basic bands offset by multiplier*ATR, final band is monotonic per the
// std flip rule).
func superTrend(highs, lows, closes []float64, period int, multiplier float64) float64 {
	n := len(closes)
	if n < period+1 {
		return math.NaN()
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	atr := make([]float64, n)
	var sum float64
	for i := 0; i < period && i < n; i++ {
		sum += tr[i]
	}
	atr[period-1] = sum / float64(period)
	for i := period; i < n; i++ {
		atr[i] = (atr[i-1]*float64(period-1) + tr[i]) / float64(period)
	}

	var finalUpper, finalLower, superTrendVal float64
	trendUp := true
	for i := period - 1; i < n; i++ {
		mid := (highs[i] + lows[i]) / 2
		basicUpper := mid + multiplier*atr[i]
		basicLower := mid - multiplier*atr[i]

		upper := basicUpper
		lower := basicLower
		if i > period-1 {
			if basicUpper < finalUpper || closes[i-1] > finalUpper {
				upper = basicUpper
			} else {
				upper = finalUpper
			}
			if basicLower > finalLower || closes[i-1] < finalLower {
				lower = basicLower
			} else {
				lower = finalLower
			}
		}
		finalUpper, finalLower = upper, lower

		if closes[i] > finalUpper {
			trendUp = true
		} else if closes[i] < finalLower {
			trendUp = false
		}
		if trendUp {
			superTrendVal = finalLower
		} else {
			superTrendVal = finalUpper
		}
	}
	return superTrendVal
}
