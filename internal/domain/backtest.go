package domain

import "time"

// BacktestJob status values. Terminal states (Completed, Failed) are sticky;
// nothing transitions a job out of them.
const (
	BacktestStatusPending   = "PENDING"
	BacktestStatusRunning   = "RUNNING"
	BacktestStatusCompleted = "COMPLETED"
	BacktestStatusFailed    = "FAILED"
)

// BacktestBatch status values.
const (
	BatchStatusPending         = "PENDING"
	BatchStatusRunning         = "RUNNING"
	BatchStatusCompleted       = "COMPLETED"
	BatchStatusFailed          = "FAILED"
	BatchStatusPartiallyFailed = "PARTIALLY_FAILED"
)

// Exit reasons recorded on a closed trade.
const (
	ExitReasonStopLoss    = "STOP_LOSS"
	ExitReasonTakeProfit  = "TAKE_PROFIT"
	ExitReasonExitSignal  = "EXIT_SIGNAL"
	ExitReasonEndOfData   = "END_OF_DATA"
)

// Position sides.
const (
	PositionLong  = "LONG"
	PositionShort = "SHORT"
)

// Simulation pacing constants, grounded on the original engine's
// progress_tracker defaults: check wall-clock every 1000 candles, abort
// after 300s of continuous processing.
const (
	SimulationTimeoutCheckInterval = 1000
	SimulationTimeoutSeconds       = 300
	SimulationProgressLogInterval  = 0.10
)

// BacktestConfig governs position sizing and cost assumptions for a single
// simulation run. Bounds below the advisory threshold are accepted without
// complaint; bounds above it are accepted but should be logged as a warning
// by the caller.
type BacktestConfig struct {
	InitialBalance         float64 `json:"initialBalance"`
	CommissionRate         float64 `json:"commissionRate"`
	PositionSizeMultiplier float64 `json:"positionSizeMultiplier"`
}

const (
	minInitialBalance = 1000.0
	maxInitialBalance = 1_000_000_000.0

	maxAdvisoryCommissionRate = 0.01
	maxPositionSizeMultiplier = 10.0
	advisoryPositionSizeMax   = 5.0
)

// DefaultBacktestConfig mirrors the original engine's defaults.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialBalance:         100_000.0,
		CommissionRate:         0.0003,
		PositionSizeMultiplier: 3.0,
	}
}

// Validate enforces the hard bounds; it does not itself log the advisory
// warnings for commission_rate/position_size_multiplier above their
// recommended range, since domain types must stay logging-agnostic — callers
// check IsCommissionRateHigh / IsPositionSizeAggressive and log as they see
// fit.
func (c BacktestConfig) Validate() error {
	if c.InitialBalance < minInitialBalance || c.InitialBalance > maxInitialBalance {
		return errValidationf("initial_balance must be in [%v, %v], got %v", minInitialBalance, maxInitialBalance, c.InitialBalance)
	}
	if c.CommissionRate < 0 {
		return errValidationf("commission_rate must be >= 0, got %v", c.CommissionRate)
	}
	if c.PositionSizeMultiplier <= 0 || c.PositionSizeMultiplier > maxPositionSizeMultiplier {
		return errValidationf("position_size_multiplier must be in (0, %v], got %v", maxPositionSizeMultiplier, c.PositionSizeMultiplier)
	}
	return nil
}

func (c BacktestConfig) IsCommissionRateHigh() bool {
	return c.CommissionRate > maxAdvisoryCommissionRate
}

func (c BacktestConfig) IsPositionSizeAggressive() bool {
	return c.PositionSizeMultiplier > advisoryPositionSizeMax
}

// BacktestJob is one unit of simulation work, optionally belonging to a
// BacktestBatch.
type BacktestJob struct {
	ID                         string    `db:"id" json:"id"`
	UserID                     string    `db:"user_id" json:"userId"`
	StrategyID                 string    `db:"strategy_id" json:"strategyId"`
	Ticker                     string    `db:"ticker" json:"ticker"`
	Timeframe                  Timeframe `db:"timeframe" json:"timeframe"`
	StartDate                  time.Time `db:"start_date" json:"startDate"`
	EndDate                    time.Time `db:"end_date" json:"endDate"`
	Status                     string    `db:"status" json:"status"`
	StrategyDefinitionSnapshot []byte    `db:"strategy_definition_snapshot" json:"-"`
	SimulationParams           []byte    `db:"simulation_params" json:"-"`
	BatchID                    *string   `db:"batch_id" json:"batchId,omitempty"`
	CountsTowardsLimit         bool      `db:"counts_towards_limit" json:"countsTowardsLimit"`
	ErrorMessage               *string   `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt                  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updatedAt"`
}

func (j BacktestJob) IsTerminal() bool {
	return j.Status == BacktestStatusCompleted || j.Status == BacktestStatusFailed
}

// BacktestTrade is one closed round trip, with both the base fields
// persisted verbatim and the derived percentages computed on read. The
// derived fields are not stored columns; they are recomputed from the base
// fields every time a trade is materialized, so they can never drift from
// their inputs.
type BacktestTrade struct {
	Position         string    `json:"position"`
	EntryTime        time.Time `json:"entryTime"`
	EntryPrice       float64   `json:"entryPrice"`
	ExitTime         time.Time `json:"exitTime"`
	ExitPrice        float64   `json:"exitPrice"`
	ExitReason       string    `json:"exitReason"`
	IsFlip           bool      `json:"isFlip"`
	Quantity         float64   `json:"quantity"`
	LotSize          int       `json:"lotSize"`
	NumLots          int       `json:"numLots"`
	PositionCost     float64   `json:"positionCost"`
	EntryCapital     float64   `json:"entryCapital"`
	ExitCapital      float64   `json:"exitCapital"`
	InitialStopLoss  float64   `json:"initialStopLoss"`
	FinalStopLoss    float64   `json:"finalStopLoss"`
	TakeProfit       float64   `json:"takeProfit"`
	GrossProfitAbs   float64   `json:"grossProfitAbs"`
	CommissionCost   float64   `json:"commissionCost"`
	NetProfitAbs     float64   `json:"netProfitAbs"`
	DurationHours    float64   `json:"durationHours"`
	DurationCandles  int       `json:"durationCandles"`
}

// GrossProfitPctOnPosition is gross PnL relative to the capital committed to
// the position (position_cost), not the account's total capital.
func (t BacktestTrade) GrossProfitPctOnPosition() float64 {
	if t.PositionCost == 0 {
		return 0
	}
	return 100 * t.GrossProfitAbs / t.PositionCost
}

func (t BacktestTrade) GrossProfitPctOnCapital() float64 {
	if t.EntryCapital == 0 {
		return 0
	}
	return 100 * t.GrossProfitAbs / t.EntryCapital
}

func (t BacktestTrade) NetProfitPctOnPosition() float64 {
	if t.PositionCost == 0 {
		return 0
	}
	return 100 * t.NetProfitAbs / t.PositionCost
}

func (t BacktestTrade) NetProfitPctOnCapital() float64 {
	if t.EntryCapital == 0 {
		return 0
	}
	return 100 * t.NetProfitAbs / t.EntryCapital
}

func (t BacktestTrade) CapitalChangePct() float64 {
	if t.EntryCapital == 0 {
		return 0
	}
	return 100 * (t.ExitCapital - t.EntryCapital) / t.EntryCapital
}

func (t BacktestTrade) StopLossDistancePct() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	return 100 * abs(t.InitialStopLoss-t.EntryPrice) / t.EntryPrice
}

func (t BacktestTrade) CommissionPctOnPosition() float64 {
	if t.PositionCost == 0 {
		return 0
	}
	return 100 * t.CommissionCost / t.PositionCost
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// BacktestMetrics is the performance summary computed once per completed
// backtest from its trade ledger. All fields are derived; none are inputs.
type BacktestMetrics struct {
	TotalTrades        int     `json:"totalTrades"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	WinRate            float64 `json:"winRate"`
	GrossProfitPct     float64 `json:"grossProfitPct"`
	NetProfitPct       float64 `json:"netProfitPct"`
	InitialBalance     float64 `json:"initialBalance"`
	FinalBalance       float64 `json:"finalBalance"`
	MaxDrawdownPct     float64 `json:"maxDrawdownPct"`
	AvgWinPct          float64 `json:"avgWinPct"`
	AvgLossPct         float64 `json:"avgLossPct"`
	NetProfitStdDev    float64 `json:"netProfitStdDev"`
	ProfitFactor       float64 `json:"profitFactor"`
	SharpeRatio        float64 `json:"sharpeRatio"`
	StabilityScore     float64 `json:"stabilityScore"`
	MaxConsecutiveWins   int   `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int   `json:"maxConsecutiveLosses"`
}

// BacktestResult is the persisted outcome of a completed job.
type BacktestResult struct {
	JobID   string           `db:"job_id" json:"jobId"`
	Metrics BacktestMetrics  `db:"-" json:"metrics"`
	Trades  []BacktestTrade  `db:"-" json:"trades"`
}

// BacktestBatch groups N correlated BacktestJobs submitted atomically.
// Invariant: CompletedCount + FailedCount <= TotalCount.
type BacktestBatch struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	Description    string    `db:"description" json:"description"`
	Status         string    `db:"status" json:"status"`
	TotalCount     int       `db:"total_count" json:"totalCount"`
	CompletedCount int       `db:"completed_count" json:"completedCount"`
	FailedCount    int       `db:"failed_count" json:"failedCount"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// DeriveStatus computes the status that CompletedCount/FailedCount/TotalCount
// imply, per spec: PENDING until the first child terminates, RUNNING while
// partially done, then COMPLETED/FAILED/PARTIALLY_FAILED once all children
// are terminal.
func (b BacktestBatch) DeriveStatus() string {
	done := b.CompletedCount + b.FailedCount
	switch {
	case done == 0:
		return BatchStatusPending
	case done < b.TotalCount:
		return BatchStatusRunning
	case b.FailedCount == b.TotalCount:
		return BatchStatusFailed
	case b.CompletedCount == b.TotalCount:
		return BatchStatusCompleted
	default:
		return BatchStatusPartiallyFailed
	}
}

const MaxBatchChildren = 50
