package backtest

import (
	"math"

	"tradeforge-core/internal/domain"
)

// ExitChecker evaluates the exit priority ordering from spec §4.4.A:
// stop-loss first, then take-profit, then the strategy's own exit signal.
// Stateless — every method is a pure function of (state, data, i).
type ExitChecker struct{}

// CheckExitConditions returns the first exit condition to trigger at index
// i for the currently open position, or nil if none fired. Priority order
// within a single call matters: stop-loss beats take-profit beats exit
// signal, matching the exact ordering the original engine uses.
func (ExitChecker) CheckExitConditions(state TradingState, data CachedData, i int) *ExitInfo {
	switch state.PositionType {
	case domain.PositionLong:
		if !math.IsNaN(state.CurrentStopLoss) && data.Low[i] <= state.CurrentStopLoss {
			return &ExitInfo{Reason: domain.ExitReasonStopLoss, Price: state.CurrentStopLoss}
		}
	case domain.PositionShort:
		if !math.IsNaN(state.CurrentStopLoss) && data.High[i] >= state.CurrentStopLoss {
			return &ExitInfo{Reason: domain.ExitReasonStopLoss, Price: state.CurrentStopLoss}
		}
	}

	switch state.PositionType {
	case domain.PositionLong:
		if !math.IsNaN(state.CurrentTakeProfit) && data.High[i] >= state.CurrentTakeProfit {
			return &ExitInfo{Reason: domain.ExitReasonTakeProfit, Price: state.CurrentTakeProfit}
		}
	case domain.PositionShort:
		if !math.IsNaN(state.CurrentTakeProfit) && data.Low[i] <= state.CurrentTakeProfit {
			return &ExitInfo{Reason: domain.ExitReasonTakeProfit, Price: state.CurrentTakeProfit}
		}
	}

	switch state.PositionType {
	case domain.PositionLong:
		if data.ExitLongSignals[i] {
			return &ExitInfo{Reason: domain.ExitReasonExitSignal, Price: data.Close[i]}
		}
	case domain.PositionShort:
		if data.ExitShortSignals[i] {
			return &ExitInfo{Reason: domain.ExitReasonExitSignal, Price: data.Close[i]}
		}
	}

	return nil
}

// CheckFlip reports whether, at index i, the opposite entry signal is true
// while a position is open — a flip closes the current side and opens the
// opposite one at the same close price.
func (ExitChecker) CheckFlip(state TradingState, data CachedData, i int) bool {
	switch state.PositionType {
	case domain.PositionLong:
		return data.EntrySellSignals[i]
	case domain.PositionShort:
		return data.EntryBuySignals[i]
	default:
		return false
	}
}
