package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type BacktestRepository struct {
	db *sqlx.DB
}

func NewBacktestRepository(db *sqlx.DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

func (r *BacktestRepository) GetJob(ctx context.Context, id string) (*domain.BacktestJob, error) {
	var job domain.BacktestJob
	err := r.db.GetContext(ctx, &job, `
		SELECT id, user_id, strategy_id, ticker, timeframe, start_date, end_date, status,
		       strategy_definition_snapshot, simulation_params, batch_id, counts_towards_limit,
		       error_message, created_at, updated_at
		FROM backtest_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &job, err
}

func (r *BacktestRepository) CreateJob(ctx context.Context, job *domain.BacktestJob) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO backtest_jobs
			(id, user_id, strategy_id, ticker, timeframe, start_date, end_date, status,
			 strategy_definition_snapshot, simulation_params, batch_id, counts_towards_limit, error_message)
		VALUES
			(:id, :user_id, :strategy_id, :ticker, :timeframe, :start_date, :end_date, :status,
			 :strategy_definition_snapshot, :simulation_params, :batch_id, :counts_towards_limit, :error_message)`,
		job)
	return err
}

// UpdateJobStatus writes status unconditionally; callers needing the
// compare-and-swap transition into RUNNING should use TransitionToRunning.
func (r *BacktestRepository) UpdateJobStatus(ctx context.Context, id, status string, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backtest_jobs SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		id, status, errMsg)
	return err
}

// TransitionToRunning moves a job into RUNNING iff it is not already in a
// terminal state, returning false (no error) if the row was already
// terminal — the orchestrator treats that as "someone else already
// finished this job, do nothing."
func (r *BacktestRepository) TransitionToRunning(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE backtest_jobs SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ($3, $4)`,
		id, domain.BacktestStatusRunning, domain.BacktestStatusCompleted, domain.BacktestStatusFailed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BacktestRepository) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return err
	}
	trades, err := json.Marshal(result.Trades)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_results (job_id, metrics, trades)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET metrics = EXCLUDED.metrics, trades = EXCLUDED.trades`,
		result.JobID, metrics, trades)
	return err
}
