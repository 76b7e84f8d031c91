// Package strategyeval turns a domain.StrategyDefinition into six aligned
// per-candle series a backtest simulator can step through: entry_buy,
// entry_sell, exit_long, exit_short, sl_long, sl_short. Evaluation is pure
// and vectorized — no I/O, no clock, no randomness — so the same definition
// and the same candle frame always produce bit-identical series.
package strategyeval

import (
	"fmt"

	"tradeforge-core/internal/domain"
)

// Frame is the columnar candle+indicator data the evaluator reads from.
// Indicators holds one aligned []float64 per indicator_key, including
// "prev:"-prefixed keys are NOT used here — PREV_INDICATOR_VALUE instead
// looks one index back in the same series.
type Frame struct {
	Len        int
	Indicators map[string][]float64
}

func (f Frame) indicatorSeries(key string) ([]float64, error) {
	s, ok := f.Indicators[key]
	if !ok {
		return nil, fmt.Errorf("strategyeval: indicator %q not present in frame", key)
	}
	if len(s) != f.Len {
		return nil, fmt.Errorf("strategyeval: indicator %q has length %d, frame length %d", key, len(s), f.Len)
	}
	return s, nil
}

// Signals is the six aligned series produced by Evaluate, each of length
// Frame.Len.
type Signals struct {
	EntryBuy  []bool
	EntrySell []bool
	ExitLong  []bool
	ExitShort []bool
	SLLong    []float64
	SLShort   []float64
}

// Evaluate computes all six series for def over frame. A nil branch of def
// (e.g. no exit_conditions) yields an all-false/all-NaN series rather than
// an error — the simulator treats an always-false condition as "this branch
// never fires".
func Evaluate(def domain.StrategyDefinition, frame Frame) (Signals, error) {
	sig := Signals{
		EntryBuy:  make([]bool, frame.Len),
		EntrySell: make([]bool, frame.Len),
		ExitLong:  make([]bool, frame.Len),
		ExitShort: make([]bool, frame.Len),
		SLLong:    nanSlice(frame.Len),
		SLShort:   nanSlice(frame.Len),
	}

	if def.EntryBuyConditions != nil {
		s, err := evalCondition(*def.EntryBuyConditions, frame)
		if err != nil {
			return Signals{}, fmt.Errorf("entry_buy_conditions: %w", err)
		}
		sig.EntryBuy = s
	}
	if def.EntrySellConditions != nil {
		s, err := evalCondition(*def.EntrySellConditions, frame)
		if err != nil {
			return Signals{}, fmt.Errorf("entry_sell_conditions: %w", err)
		}
		sig.EntrySell = s
	}
	if def.ExitConditions != nil {
		s, err := evalCondition(*def.ExitConditions, frame)
		if err != nil {
			return Signals{}, fmt.Errorf("exit_conditions: %w", err)
		}
		// exit_conditions apply symmetrically to both sides unless the
		// strategy narrows them with a SUPER_TREND_FLIP special node
		// (already position-aware); otherwise the same boolean drives
		// both exit_long and exit_short.
		sig.ExitLong = s
		sig.ExitShort = s
	}
	if def.StopLoss != nil && def.StopLoss.Type == domain.StopLossIndicatorBased {
		if def.StopLoss.BuyValueKey != "" {
			s, err := frame.indicatorSeries(def.StopLoss.BuyValueKey)
			if err != nil {
				return Signals{}, fmt.Errorf("stop_loss.buy_value_key: %w", err)
			}
			sig.SLLong = s
		}
		if def.StopLoss.SellValueKey != "" {
			s, err := frame.indicatorSeries(def.StopLoss.SellValueKey)
			if err != nil {
				return Signals{}, fmt.Errorf("stop_loss.sell_value_key: %w", err)
			}
			sig.SLShort = s
		}
	}

	return sig, nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = nan()
	}
	return s
}

func nan() float64 {
	var z float64
	return z / z // canonical NaN without importing math just for this
}

// evalCondition dispatches a ConditionNode to its per-candle boolean series.
func evalCondition(n domain.ConditionNode, frame Frame) ([]bool, error) {
	switch n.Type {
	case domain.NodeGreaterThan, domain.NodeLessThan, domain.NodeEquals:
		return evalComparison(n, frame)
	case domain.NodeCrossoverUp, domain.NodeCrossoverDown:
		return evalCrossover(n, frame)
	case domain.NodeSuperTrendFlip:
		return evalSuperTrendFlip(n, frame)
	case domain.NodeAnd:
		return evalLogical(n.Conditions, frame, andFold)
	case domain.NodeOr:
		return evalLogical(n.Conditions, frame, orFold)
	default:
		return nil, fmt.Errorf("unknown condition node type %q", n.Type)
	}
}

func evalValue(n domain.ValueNode, frame Frame) ([]float64, error) {
	switch n.Type {
	case domain.NodeValue:
		out := make([]float64, frame.Len)
		for i := range out {
			out[i] = n.Value
		}
		return out, nil
	case domain.NodeIndicatorValue:
		return frame.indicatorSeries(n.Key)
	case domain.NodePrevIndicatorValue:
		s, err := frame.indicatorSeries(n.Key)
		if err != nil {
			return nil, err
		}
		out := make([]float64, frame.Len)
		out[0] = nan()
		copy(out[1:], s[:len(s)-1])
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value node type %q", n.Type)
	}
}

func evalComparison(n domain.ConditionNode, frame Frame) ([]bool, error) {
	left, err := evalValue(*n.Left, frame)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := evalValue(*n.Right, frame)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	out := make([]bool, frame.Len)
	for i := 0; i < frame.Len; i++ {
		switch n.Type {
		case domain.NodeGreaterThan:
			out[i] = left[i] > right[i]
		case domain.NodeLessThan:
			out[i] = left[i] < right[i]
		case domain.NodeEquals:
			out[i] = left[i] == right[i]
		}
	}
	return out, nil
}

func evalCrossover(n domain.ConditionNode, frame Frame) ([]bool, error) {
	line1, err := evalValue(*n.Line1, frame)
	if err != nil {
		return nil, fmt.Errorf("line1: %w", err)
	}
	line2, err := evalValue(*n.Line2, frame)
	if err != nil {
		return nil, fmt.Errorf("line2: %w", err)
	}
	out := make([]bool, frame.Len)
	for i := 1; i < frame.Len; i++ {
		prevLE := line1[i-1] <= line2[i-1]
		prevGE := line1[i-1] >= line2[i-1]
		switch n.Type {
		case domain.NodeCrossoverUp:
			out[i] = prevLE && line1[i] > line2[i]
		case domain.NodeCrossoverDown:
			out[i] = prevGE && line1[i] < line2[i]
		}
	}
	return out, nil
}

// evalSuperTrendFlip yields true wherever the indicator's direction column
// is non-zero; whether that constitutes "opposite to position" is a
// position-aware decision the simulator itself makes (it knows which side
// is open), so the series here just exposes the raw flip signal.
func evalSuperTrendFlip(n domain.ConditionNode, frame Frame) ([]bool, error) {
	s, err := frame.indicatorSeries(n.IndicatorKey)
	if err != nil {
		return nil, fmt.Errorf("indicator_key: %w", err)
	}
	out := make([]bool, frame.Len)
	for i, v := range s {
		out[i] = v != 0
	}
	return out, nil
}

func andFold(acc, v bool) bool { return acc && v }
func orFold(acc, v bool) bool  { return acc || v }

func evalLogical(conditions []domain.ConditionNode, frame Frame, fold func(acc, v bool) bool) ([]bool, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("logical node: no conditions")
	}
	out, err := evalCondition(conditions[0], frame)
	if err != nil {
		return nil, err
	}
	out = append([]bool(nil), out...)
	for _, c := range conditions[1:] {
		next, err := evalCondition(c, frame)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = fold(out[i], next[i])
		}
	}
	return out, nil
}
