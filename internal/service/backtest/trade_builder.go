package backtest

import (
	"math"
	"time"

	"tradeforge-core/internal/domain"
)

// TradeBuilder turns a closed position into a persisted BacktestTrade
// record per the book-keeping rules of spec §4.4.E.
type TradeBuilder struct {
	Ticker domain.Ticker
	Config domain.BacktestConfig
}

// Build computes quantity/cost/PnL/commission for one round trip and
// returns the trade plus the capital after this trade (exit_capital),
// which the caller feeds back into TradingState.CurrentCapital.
func (b TradeBuilder) Build(
	state TradingState,
	exitTime time.Time,
	exitPrice float64,
	exitReason string,
	isFlip bool,
	durationCandles int,
) BacktestTradeResult {
	numLots := int(math.Floor((state.EntryCapital * b.Config.PositionSizeMultiplier) / (state.EntryPrice * float64(b.Ticker.LotSize))))
	if numLots < 0 {
		numLots = 0
	}
	quantity := float64(numLots * b.Ticker.LotSize)
	positionCost := state.EntryPrice * quantity

	var grossProfit float64
	if state.PositionType == domain.PositionLong {
		grossProfit = (exitPrice - state.EntryPrice) * quantity
	} else {
		grossProfit = (state.EntryPrice - exitPrice) * quantity
	}

	entryCommission := positionCost * b.Config.CommissionRate
	exitNotional := exitPrice * quantity
	exitCommission := exitNotional * b.Config.CommissionRate
	commission := entryCommission + exitCommission

	netProfit := grossProfit - commission
	exitCapital := state.EntryCapital + netProfit

	durationHours := exitTime.Sub(state.EntryTime).Hours()

	trade := domain.BacktestTrade{
		Position:        state.PositionType,
		EntryTime:       state.EntryTime,
		EntryPrice:      state.EntryPrice,
		ExitTime:        exitTime,
		ExitPrice:       exitPrice,
		ExitReason:      exitReason,
		IsFlip:          isFlip,
		Quantity:        quantity,
		LotSize:         b.Ticker.LotSize,
		NumLots:         numLots,
		PositionCost:    positionCost,
		EntryCapital:    state.EntryCapital,
		ExitCapital:     exitCapital,
		InitialStopLoss: state.InitialStopLoss,
		FinalStopLoss:   state.CurrentStopLoss,
		TakeProfit:      state.CurrentTakeProfit,
		GrossProfitAbs:  grossProfit,
		CommissionCost:  commission,
		NetProfitAbs:    netProfit,
		DurationHours:   durationHours,
		DurationCandles: durationCandles,
	}

	return BacktestTradeResult{Trade: trade, ExitCapital: exitCapital}
}

// BacktestTradeResult pairs a finished trade with the resulting account
// capital, since TradingState itself is reset on close.
type BacktestTradeResult struct {
	Trade       domain.BacktestTrade
	ExitCapital float64
}
