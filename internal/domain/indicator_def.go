package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// reservedOHLCVNames are indicator-name collisions the resolver must reject:
// these columns already exist on every candle row and can never be an
// indicator family.
var reservedOHLCVNames = map[string]bool{
	"open": true, "high": true, "low": true, "close": true,
	"volume": true, "value": true, "begin": true,
}

// IndicatorDef is the canonical, parsed form of an indicator_key: a family
// name plus its sorted parameter set. IsHot marks it as required by the RT
// pipeline in addition to (or instead of) batch backtesting.
type IndicatorDef struct {
	Name   string
	Params map[string]float64
	IsHot  bool
}

// Key reconstructs the canonical indicator_key string: name followed by
// sorted param_name_value pairs. Integer-valued params are rendered without
// a trailing ".0".
func (d IndicatorDef) Key() string {
	names := make([]string, 0, len(d.Params))
	for k := range d.Params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(d.Name)
	for _, name := range names {
		b.WriteByte('_')
		b.WriteString(name)
		b.WriteByte('_')
		b.WriteString(formatParamValue(d.Params[name]))
	}
	return b.String()
}

func formatParamValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseIndicatorKey splits a canonical indicator_key such as
// "ema_timeperiod_12_value" back into name and params, rejecting reserved
// OHLCV column names. This is a best-effort parse over the "name then
// repeated paramName_value pairs" convention; the output-column suffix (the
// final bare token, e.g. "value" or "macd") is dropped since it identifies
// which field of a multi-output indicator to read, not a parameter.
func ParseIndicatorKey(key string) (IndicatorDef, string, error) {
	parts := strings.Split(key, "_")
	if len(parts) < 1 || parts[0] == "" {
		return IndicatorDef{}, "", errValidationf("indicator key %q: empty name", key)
	}
	name := parts[0]
	if reservedOHLCVNames[name] {
		return IndicatorDef{}, "", errValidationf("indicator key %q: %q is a reserved OHLCV name", key, name)
	}

	rest := parts[1:]
	params := map[string]float64{}
	i := 0
	for i+1 < len(rest) {
		maybeVal := rest[i+1]
		f, err := strconv.ParseFloat(maybeVal, 64)
		if err != nil {
			break
		}
		params[rest[i]] = f
		i += 2
	}
	outputSuffix := strings.Join(rest[i:], "_")
	if outputSuffix == "" {
		outputSuffix = "value"
	}
	return IndicatorDef{Name: name, Params: params}, outputSuffix, nil
}

// lookbackFormula computes a family's required warm-up window in candles
// given its parsed params. Families not listed default to 100.
var lookbackFormula = map[string]func(params map[string]float64) int{
	"rsi": func(p map[string]float64) int {
		return 2 * int(p["timeperiod"])
	},
	"macd": func(p map[string]float64) int {
		return 2 * int(p["slowperiod"]+p["signalperiod"])
	},
	"supertrend": func(p map[string]float64) int {
		return 2 * int(p["period"])
	},
	"ema": func(p map[string]float64) int {
		return 2 * int(p["timeperiod"])
	},
	"sma": func(p map[string]float64) int {
		return 2 * int(p["timeperiod"])
	},
}

const defaultLookback = 100

// Lookback returns the number of warm-up candles this indicator needs.
func (d IndicatorDef) Lookback() int {
	if f, ok := lookbackFormula[d.Name]; ok {
		if n := f(d.Params); n > 0 {
			return n
		}
	}
	return defaultLookback
}

// IndicatorSeriesPoint is a single (ticker, timeframe, indicator_key, begin)
// → value observation. WrittenAt is the monotonic write timestamp used to
// resolve last-write-wins on duplicate (key, begin).
type IndicatorSeriesPoint struct {
	Ticker       string    `db:"ticker" json:"ticker"`
	Timeframe    Timeframe `db:"timeframe" json:"timeframe"`
	IndicatorKey string    `db:"indicator_key" json:"indicatorKey"`
	Begin        time.Time `db:"begin" json:"begin"`
	Value        float64   `db:"value" json:"value"`
	WrittenAt    time.Time `db:"written_at" json:"writtenAt"`
}

// IndicatorCoverage reports, for one indicator_key, how many series points
// exist within a queried window — the building block for the
// data-availability checker's per-indicator coverage counts.
type IndicatorCoverage struct {
	IndicatorKey string
	Count        int
}

func (c IndicatorCoverage) String() string {
	return fmt.Sprintf("%s: %d points", c.IndicatorKey, c.Count)
}
