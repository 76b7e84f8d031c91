package backtest

import (
	"time"

	"tradeforge-core/internal/analytics/strategyeval"
)

// CachedData is the struct-of-arrays view the simulator steps through.
// Everything the inner loop reads is a contiguous slice indexed by candle
// position, copied once up front from the evaluator's output and the
// source dataframe — no map lookups or allocation happen inside the loop.
type CachedData struct {
	Begin []time.Time
	Low   []float64
	High  []float64
	Close []float64

	EntryBuySignals  []bool
	EntrySellSignals []bool
	ExitLongSignals  []bool
	ExitShortSignals []bool
	SLLong           []float64
	SLShort          []float64
}

func (c CachedData) Len() int { return len(c.Close) }

// NewCachedData joins a candle frame with the evaluator's six signal
// series into one struct-of-arrays.
func NewCachedData(begin []time.Time, low, high, close []float64, sig strategyeval.Signals) CachedData {
	return CachedData{
		Begin:            begin,
		Low:              low,
		High:             high,
		Close:            close,
		EntryBuySignals:  sig.EntryBuy,
		EntrySellSignals: sig.EntrySell,
		ExitLongSignals:  sig.ExitLong,
		ExitShortSignals: sig.ExitShort,
		SLLong:           sig.SLLong,
		SLShort:          sig.SLShort,
	}
}
