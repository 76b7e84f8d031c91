package backtest

import (
	"context"
	"fmt"
	"time"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/internal/service/dataavailability"
	"tradeforge-core/internal/service/indicatorresolver"
	"tradeforge-core/pkg/apperrors"
)

// IndicatorRequestPublisher is the C5 request-path surface the orchestrator
// uses to kick off a calculation round trip. Kept as a narrow interface so
// the orchestrator doesn't need to know about Kafka directly.
type IndicatorRequestPublisher interface {
	RequestCalculation(ctx context.Context, jobID string, ticker string, tf domain.Timeframe, start, end time.Time, indicatorKeys []string) error
}

// lookbackBuffer is added on top of max_lookback when requesting indicator
// calculation, so the calculated window has margin for indicator warm-up
// inside the compute service itself.
const lookbackBuffer = 1.2

// Orchestrator drives one BacktestJob through the state machine in spec
// §4.5. It is deliberately re-entrant and stateless between calls — all
// durable state lives on the job row, so a process restart between
// CHECK_DATA and the indicator-calculation response loses nothing.
type Orchestrator struct {
	Jobs          repository.BacktestRepository
	Tickers       repository.TickerRepository
	Availability  *dataavailability.Checker
	Candles       repository.CandleStore
	Indicators    repository.IndicatorStore
	IndicatorReqs IndicatorRequestPublisher
	Batches       repository.BatchRepository
}

// Process runs one pass of the state machine for jobID. skipIndicatorCheck
// is set when this call is the re-entry after a CALCULATION_SUCCESS
// response, so CHECK_DATA is bypassed and SIMULATE runs directly.
func (o *Orchestrator) Process(ctx context.Context, jobID string, skipIndicatorCheck bool) error {
	job, err := o.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return apperrors.NewRetryableError("load backtest job", err)
	}

	// LOAD
	if job.Status != domain.BacktestStatusPending && job.Status != domain.BacktestStatusRunning {
		return apperrors.NewFatalError(fmt.Sprintf("job %s is in terminal status %s, refusing to re-process", jobID, job.Status), nil)
	}
	if ok, err := o.Jobs.TransitionToRunning(ctx, jobID); err != nil {
		return apperrors.NewRetryableError("transition job to running", err)
	} else if !ok {
		return apperrors.NewFatalError(fmt.Sprintf("job %s could not transition to RUNNING", jobID), nil)
	}

	def, err := domain.ParseStrategyDefinition(job.StrategyDefinitionSnapshot)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("invalid strategy definition: %v", err))
	}

	resolution, err := indicatorresolver.Resolve(def)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("invalid indicator reference: %v", err))
	}

	if !skipIndicatorCheck {
		// CHECK_DATA
		keys := make([]string, len(resolution.Requirements))
		for i, r := range resolution.Requirements {
			keys[i] = r.Key
		}

		report, err := o.Availability.Check(ctx, job.Ticker, job.Timeframe, job.StartDate, job.EndDate, resolution.MaxLookback, keys)
		if err != nil {
			return apperrors.NewRetryableError("check data availability", err)
		}
		if !report.Runnable {
			return o.fail(ctx, job, report.InsufficientLookbackMessage())
		}
		if len(report.MissingIndicatorKeys) > 0 {
			bufferedLookback := int(float64(resolution.MaxLookback) * lookbackBuffer)
			start := job.StartDate.AddDate(0, 0, -bufferedLookback)
			if err := o.IndicatorReqs.RequestCalculation(ctx, job.ID, job.Ticker, job.Timeframe, start, job.EndDate, report.MissingIndicatorKeys); err != nil {
				return apperrors.NewRetryableError("publish indicator calculation request", err)
			}
			// Job remains RUNNING; the same job re-enters at LOAD when
			// the calculation response event arrives.
			return nil
		}
	}

	// SIMULATE
	ticker, err := o.Tickers.GetBySymbol(ctx, job.Ticker)
	if err != nil {
		return apperrors.NewRetryableError("load ticker", err)
	}

	lookbackStart := job.StartDate.AddDate(0, 0, -resolution.MaxLookback)
	candles, err := o.Candles.GetRange(ctx, job.Ticker, job.Timeframe, lookbackStart, job.EndDate)
	if err != nil {
		return apperrors.NewRetryableError("load candle window", err)
	}

	frame, begin, low, high, close, err := buildFrame(ctx, o.Indicators, job, resolution, candles)
	if err != nil {
		return apperrors.NewRetryableError("load indicator window", err)
	}

	var params domain.BacktestConfig
	if len(job.SimulationParams) > 0 {
		if err := parseConfig(job.SimulationParams, &params); err != nil {
			return o.fail(ctx, job, fmt.Sprintf("invalid simulation params: %v", err))
		}
	} else {
		params = domain.DefaultBacktestConfig()
	}
	if err := params.Validate(); err != nil {
		return o.fail(ctx, job, err.Error())
	}

	sim := &Simulator{Ticker: *ticker, Config: params, Def: def}
	trades, _, err := sim.Run(begin, low, high, close, frame, job.ID)
	if err != nil {
		if be, ok := err.(*apperrors.BacktestExecutionError); ok {
			return be
		}
		return apperrors.NewFatalError("simulation failed", err)
	}

	metrics := ComputeMetrics(trades, params.InitialBalance)

	// PERSIST
	result := &domain.BacktestResult{JobID: job.ID, Metrics: metrics, Trades: trades}
	if err := o.Jobs.SaveResult(ctx, result); err != nil {
		return apperrors.NewRetryableError("persist backtest result", err)
	}
	if err := o.Jobs.UpdateJobStatus(ctx, job.ID, domain.BacktestStatusCompleted, nil); err != nil {
		return apperrors.NewRetryableError("mark job completed", err)
	}

	// NOTIFY_BATCH
	if job.BatchID != nil {
		if _, err := o.Batches.RecordChildTerminal(ctx, *job.BatchID, true); err != nil {
			return apperrors.NewRetryableError("notify batch of completed child", err)
		}
	}

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *domain.BacktestJob, message string) error {
	if err := o.Jobs.UpdateJobStatus(ctx, job.ID, domain.BacktestStatusFailed, &message); err != nil {
		return apperrors.NewRetryableError("mark job failed", err)
	}
	if job.BatchID != nil {
		if _, err := o.Batches.RecordChildTerminal(ctx, *job.BatchID, false); err != nil {
			return apperrors.NewRetryableError("notify batch of failed child", err)
		}
	}
	return apperrors.NewFatalError(message, nil)
}

// HandleIndicatorCalculationResponse re-enters the state machine for
// job_id after the indicator compute service's response event, per spec
// §4.5's re-entrance rule.
func (o *Orchestrator) HandleIndicatorCalculationResponse(ctx context.Context, jobID string, success bool) error {
	if !success {
		job, err := o.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return apperrors.NewRetryableError("load backtest job", err)
		}
		return o.fail(ctx, job, "indicator calculation failed")
	}
	return o.Process(ctx, jobID, true)
}
