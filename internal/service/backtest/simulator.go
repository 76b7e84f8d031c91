// Package backtest implements the deterministic candle-by-candle
// simulator (C3) and the job-level orchestrator (C4) that drives it.
package backtest

import (
	"time"

	"tradeforge-core/internal/analytics/strategyeval"
	"tradeforge-core/internal/domain"
)

// Simulator steps a joined OHLCV+indicator dataframe candle by candle,
// applying the strict ordering from spec §4.4: exit evaluation, flip
// detection, trailing-stop update, entry evaluation, book-keeping, timeout
// guard, end-of-data closure.
type Simulator struct {
	Ticker domain.Ticker
	Config domain.BacktestConfig
	Def    domain.StrategyDefinition

	exitChecker     ExitChecker
	positionManager PositionManager
	tradeBuilder    TradeBuilder

	// Now is injected so tests can control the timeout guard without
	// sleeping; production code leaves it nil (defaults to time.Now).
	Now func() time.Time
}

// Warning is a non-fatal condition logged during simulation — e.g. an
// ambiguous candle where both entry sides fired.
type Warning struct {
	CandleIndex int
	Message     string
}

// Run executes the full simulation and returns the trade ledger plus any
// warnings encountered. frame must already be joined with every indicator
// the strategy references, and begin/low/high/close must all share
// frame.Len.
func (s *Simulator) Run(begin []time.Time, low, high, close []float64, frame strategyeval.Frame, correlationID string) ([]domain.BacktestTrade, []Warning, error) {
	sig, err := strategyeval.Evaluate(s.Def, frame)
	if err != nil {
		return nil, nil, err
	}
	data := NewCachedData(begin, low, high, close, sig)

	s.exitChecker = ExitChecker{}
	s.positionManager = PositionManager{}
	if s.Def.StopLoss != nil {
		s.positionManager.StopLoss = *s.Def.StopLoss
	}
	if s.Def.TakeProfit != nil {
		s.positionManager.TakeProfit = *s.Def.TakeProfit
	}
	s.tradeBuilder = TradeBuilder{Ticker: s.Ticker, Config: s.Config}

	tracker := NewProgressTracker(s.Now, correlationID)

	state := NewTradingState(s.Config.InitialBalance)
	var trades []domain.BacktestTrade
	var warnings []Warning

	n := data.Len()
	for i := 1; i < n; i++ {
		// A. Exit evaluation.
		if state.HasPosition() {
			if exit := s.exitChecker.CheckExitConditions(state, data, i); exit != nil {
				// B. Flip detection, evaluated against the signal at
				// exit time, before the position is closed.
				isFlip := s.exitChecker.CheckFlip(state, data, i)
				result := s.tradeBuilder.Build(state, data.Begin[i], exit.Price, exit.Reason, isFlip, i-state.EntryIndex)
				trades = append(trades, result.Trade)
				closingCapital := result.ExitCapital
				state.ResetPosition()
				state.CurrentCapital = closingCapital

				if isFlip {
					opposite := domain.PositionShort
					if result.Trade.Position == domain.PositionShort {
						opposite = domain.PositionLong
					}
					entry := s.flipEntry(opposite, data, i)
					s.positionManager.OpenPosition(&state, entry, data, i)
				}
			} else {
				// C. Trailing stop update — only when the position
				// survived exit evaluation this candle.
				s.positionManager.UpdateTrailingStop(&state, data, i)
			}
		}

		// D. Entry evaluation when flat.
		if !state.HasPosition() {
			entry, ambiguous := s.positionManager.CheckEntryConditions(data, i)
			if ambiguous {
				warnings = append(warnings, Warning{CandleIndex: i, Message: "ambiguous candle: both entry_buy and entry_sell true"})
			} else if entry != nil {
				s.positionManager.OpenPosition(&state, *entry, data, i)
			}
		}

		// F. Timeout guard.
		if err := tracker.CheckTimeout(i); err != nil {
			return trades, warnings, err
		}
	}

	// G. End-of-data closure.
	if state.HasPosition() {
		lastIdx := n - 1
		result := s.tradeBuilder.Build(state, data.Begin[lastIdx], data.Close[lastIdx], domain.ExitReasonEndOfData, false, lastIdx-state.EntryIndex)
		trades = append(trades, result.Trade)
		state.CurrentCapital = result.ExitCapital
		state.ResetPosition()
	}

	return trades, warnings, nil
}

// flipEntry builds the EntryInfo for the opposite side opened immediately
// on a flip, at the same close price the exit used.
func (s *Simulator) flipEntry(side string, data CachedData, i int) EntryInfo {
	price := data.Close[i]
	sl := s.positionManager.initialStopLoss(side, price, data, i)
	tp := s.positionManager.takeProfit(side, price, sl)
	return EntryInfo{PositionType: side, Price: price, StopLoss: sl, TakeProfit: tp}
}
