package domain

import "time"

// DefaultRollingContextSize is the fixed FIFO depth kept per (ticker,
// timeframe) — enough candles to warm up every hot indicator family.
const DefaultRollingContextSize = 500

// RollingContext is a bounded FIFO of recent candles for one (ticker,
// timeframe), cached so the RT pipeline never has to read the full candle
// history to compute a hot indicator on the latest bar.
type RollingContext struct {
	Ticker    string
	Timeframe Timeframe
	Candles   []Candle
	maxSize   int
}

func NewRollingContext(ticker string, tf Timeframe, maxSize int) *RollingContext {
	if maxSize <= 0 {
		maxSize = DefaultRollingContextSize
	}
	return &RollingContext{Ticker: ticker, Timeframe: tf, maxSize: maxSize}
}

// Append adds a new candle, evicting the oldest once the FIFO is at
// capacity.
func (r *RollingContext) Append(c Candle) {
	r.Candles = append(r.Candles, c)
	if len(r.Candles) > r.maxSize {
		r.Candles = r.Candles[len(r.Candles)-r.maxSize:]
	}
}

func (r *RollingContext) Len() int { return len(r.Candles) }

// Closes returns the close prices of all held candles, oldest first —
// the shape most indicator computations consume.
func (r *RollingContext) Closes() []float64 {
	out := make([]float64, len(r.Candles))
	for i, c := range r.Candles {
		out[i] = c.Close
	}
	return out
}

// CollectionCheckpoint tracks the last candle begin timestamp collected for
// a (ticker, timeframe) pair. Held in cache as the primary copy; the
// collector falls back to max(begin) over the candle store when the cache
// entry is stale or missing.
type CollectionCheckpoint struct {
	Ticker         string    `db:"ticker" json:"ticker"`
	Timeframe      Timeframe `db:"timeframe" json:"timeframe"`
	LastCandleBegin time.Time `db:"last_candle_begin" json:"lastCandleBegin"`
}

func (c CollectionCheckpoint) CacheKey() string {
	return "candles_collector:" + c.Ticker + "_" + string(c.Timeframe)
}
