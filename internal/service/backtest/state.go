package backtest

import (
	"math"
	"time"

	"tradeforge-core/internal/domain"
)

// TradingState is the simulator's only mutable per-step state. It is
// intentionally a flat value type — no pointers to CachedData, no methods
// beyond the position lifecycle below — so its entire contents can be
// reasoned about at any point in the loop.
type TradingState struct {
	PositionType string // domain.PositionLong, domain.PositionShort, or "" when flat

	EntryPrice      float64
	EntryTime       time.Time
	EntryIndex      int
	EntryCapital    float64
	InitialStopLoss float64
	CurrentStopLoss float64
	CurrentTakeProfit float64
	CurrentCapital  float64
}

func NewTradingState(initialCapital float64) TradingState {
	return TradingState{
		CurrentCapital:    initialCapital,
		InitialStopLoss:   math.NaN(),
		CurrentStopLoss:   math.NaN(),
		CurrentTakeProfit: math.NaN(),
	}
}

func (s TradingState) HasPosition() bool { return s.PositionType != "" }

func (s *TradingState) ResetPosition() {
	s.PositionType = ""
	s.EntryPrice = 0
	s.EntryTime = time.Time{}
	s.EntryIndex = 0
	s.EntryCapital = 0
	s.InitialStopLoss = math.NaN()
	s.CurrentStopLoss = math.NaN()
	s.CurrentTakeProfit = math.NaN()
}

// ExitInfo describes a triggered exit: why and at what price. ExitChecker
// never sets IsFlip; the simulator decides flips with CheckFlip.
type ExitInfo struct {
	Reason string
	Price  float64
	IsFlip bool
}

// EntryInfo describes a newly opened position.
type EntryInfo struct {
	PositionType string
	Price        float64
	StopLoss     float64
	TakeProfit   float64
}

const (
	stopLossIndicatorBased = domain.StopLossIndicatorBased
	stopLossPercentage     = domain.StopLossPercentage
	takeProfitPercentage   = domain.TakeProfitPercentage
	takeProfitRiskReward   = domain.TakeProfitRiskReward
)
