package backtest

import (
	"math"

	"tradeforge-core/internal/domain"
)

// PositionManager owns entry decisions, trailing-stop maintenance, and the
// position-side bookkeeping around open/close, grounded on the original
// engine's position_manager.py.
type PositionManager struct {
	StopLoss   domain.StopLoss
	TakeProfit domain.TakeProfit
}

// CheckEntryConditions decides whether a new position should open at index
// i given the strategy's entry signals. Both sides true simultaneously is
// ambiguous and yields no entry (the simulator records a Warning for it).
func (pm PositionManager) CheckEntryConditions(data CachedData, i int) (*EntryInfo, bool) {
	buy := data.EntryBuySignals[i]
	sell := data.EntrySellSignals[i]
	if buy && sell {
		return nil, true
	}
	if !buy && !sell {
		return nil, false
	}

	price := data.Close[i]
	var side string
	var sl float64
	if buy {
		side = domain.PositionLong
		sl = pm.initialStopLoss(side, price, data, i)
	} else {
		side = domain.PositionShort
		sl = pm.initialStopLoss(side, price, data, i)
	}
	tp := pm.takeProfit(side, price, sl)

	return &EntryInfo{PositionType: side, Price: price, StopLoss: sl, TakeProfit: tp}, false
}

func (pm PositionManager) initialStopLoss(side string, entryPrice float64, data CachedData, i int) float64 {
	switch pm.StopLoss.Type {
	case stopLossPercentage:
		if side == domain.PositionLong {
			return entryPrice * (1 - pm.StopLoss.Percentage/100)
		}
		return entryPrice * (1 + pm.StopLoss.Percentage/100)
	case stopLossIndicatorBased:
		if side == domain.PositionLong {
			return data.SLLong[i]
		}
		return data.SLShort[i]
	default:
		return math.NaN()
	}
}

// takeProfit computes the initial take-profit level per spec §4.1:
// PERCENTAGE applies entry*(1±pct); RISK_REWARD scales the entry-to-SL
// distance by Ratio in the profitable direction.
func (pm PositionManager) takeProfit(side string, entryPrice, stopLoss float64) float64 {
	switch pm.TakeProfit.Type {
	case takeProfitPercentage:
		if side == domain.PositionLong {
			return entryPrice * (1 + pm.TakeProfit.Percentage/100)
		}
		return entryPrice * (1 - pm.TakeProfit.Percentage/100)
	case takeProfitRiskReward:
		risk := math.Abs(entryPrice - stopLoss)
		if side == domain.PositionLong {
			return entryPrice + risk*pm.TakeProfit.Ratio
		}
		return entryPrice - risk*pm.TakeProfit.Ratio
	default:
		return math.NaN()
	}
}

// OpenPosition mutates state to reflect a newly opened position.
func (pm PositionManager) OpenPosition(state *TradingState, entry EntryInfo, data CachedData, i int) {
	state.PositionType = entry.PositionType
	state.EntryPrice = entry.Price
	state.EntryTime = data.Begin[i]
	state.EntryIndex = i
	state.EntryCapital = state.CurrentCapital
	state.InitialStopLoss = entry.StopLoss
	state.CurrentStopLoss = entry.StopLoss
	state.CurrentTakeProfit = entry.TakeProfit
}

// UpdateTrailingStop tightens CurrentStopLoss toward price without ever
// widening it: a long's stop may only rise, a short's may only fall. The
// candidate value comes from the strategy's per-candle trailing series
// (sl_long / sl_short); NaN candidates are ignored.
func (pm PositionManager) UpdateTrailingStop(state *TradingState, data CachedData, i int) {
	switch state.PositionType {
	case domain.PositionLong:
		candidate := data.SLLong[i]
		if !math.IsNaN(candidate) && candidate > state.CurrentStopLoss {
			state.CurrentStopLoss = candidate
		}
	case domain.PositionShort:
		candidate := data.SLShort[i]
		if !math.IsNaN(candidate) && candidate < state.CurrentStopLoss {
			state.CurrentStopLoss = candidate
		}
	}
}
