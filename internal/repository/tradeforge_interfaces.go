package repository

import (
	"context"
	"time"

	"tradeforge-core/internal/domain"
)

// TickerRepository reads the shared, read-mostly ticker reference table.
type TickerRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.Ticker, error)
}

// StrategyRepository manages user-authored strategy definitions.
type StrategyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Strategy, error)
	Create(ctx context.Context, s *domain.Strategy) error
	Update(ctx context.Context, s *domain.Strategy) error
	SoftDelete(ctx context.Context, id string) error
}

// BacktestRepository manages BacktestJob and BacktestResult rows — the
// authoritative state the orchestrator's state machine is driven from.
type BacktestRepository interface {
	GetJob(ctx context.Context, id string) (*domain.BacktestJob, error)
	CreateJob(ctx context.Context, job *domain.BacktestJob) error
	UpdateJobStatus(ctx context.Context, id, status string, errMsg *string) error
	// TransitionToRunning moves a job from PENDING/RUNNING to RUNNING,
	// refusing (returning false) if the job is already in a terminal state.
	TransitionToRunning(ctx context.Context, id string) (bool, error)
	SaveResult(ctx context.Context, result *domain.BacktestResult) error
}

// BatchRepository manages BacktestBatch rows and the atomic counter
// transition described in spec §4.8.
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*domain.BacktestBatch, error)
	// CreateWithJobs atomically inserts the batch row and all of its child
	// BacktestJob rows in a single transaction.
	CreateWithJobs(ctx context.Context, batch *domain.BacktestBatch, jobs []domain.BacktestJob) error
	// RecordChildTerminal atomically increments completed_count or
	// failed_count and recomputes status in one statement.
	RecordChildTerminal(ctx context.Context, batchID string, succeeded bool) (domain.BacktestBatch, error)
}

// QuotaRepository checks and increments per-user daily/concurrent backtest
// quota counters.
type QuotaRepository interface {
	CheckAndReserve(ctx context.Context, userID string, childCount int) error
}

// CandleStore is the analytical column store's candle-facing surface:
// bulk OHLCV reads/writes keyed by (ticker, timeframe, begin).
type CandleStore interface {
	UpsertBatch(ctx context.Context, candles []domain.Candle) error
	GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error)
	GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error)
	MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error)
}

// IndicatorStore is the analytical column store's indicator-series-facing
// surface.
type IndicatorStore interface {
	UpsertBatch(ctx context.Context, points []domain.IndicatorSeriesPoint) error
	GetSeries(ctx context.Context, ticker string, tf domain.Timeframe, indicatorKey string, start, end time.Time) ([]domain.IndicatorSeriesPoint, error)
	// Coverage reports point counts for each requested key within
	// [start, end], for the data-availability checker.
	Coverage(ctx context.Context, ticker string, tf domain.Timeframe, keys []string, start, end time.Time) (map[string]int, error)
}

// AvailabilityResult is the outcome of one data-availability check:
// the period bounds found in range, the count of warm-up candles preceding
// the period, and per-indicator coverage over the full lookback+period
// window.
type AvailabilityResult struct {
	PeriodFirstCandle   *time.Time
	PeriodLastCandle    *time.Time
	LookbackCandlesCount int
	IndicatorCoverage   map[string]int
}

// AvailabilityStore answers the data-availability check of spec §4.3. The
// ClickHouse implementation reads bounds and lookback in one query and
// indicator coverage in a second. Kept as its
// own narrow interface so the checker doesn't need the full CandleStore /
// IndicatorStore surface.
type AvailabilityStore interface {
	CheckAvailability(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time, maxLookback int, indicatorKeys []string) (AvailabilityResult, error)
}

// CheckpointStore is the cache-tier primary for collection checkpoints,
// with CandleStore.MaxBegin as the analytical-store fallback.
type CheckpointStore interface {
	Get(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error)
	Set(ctx context.Context, ticker string, tf domain.Timeframe, lastBegin time.Time) error
}

// RollingContextStore is the cache-tier store for per-(ticker,timeframe)
// rolling candle windows, with CandleStore.GetLastN as the fallback.
type RollingContextStore interface {
	Get(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.RollingContext, error)
	Set(ctx context.Context, rc *domain.RollingContext) error
}
