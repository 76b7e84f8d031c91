package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type BatchRepository struct {
	db *sqlx.DB
}

func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.BacktestBatch, error) {
	var b domain.BacktestBatch
	err := r.db.GetContext(ctx, &b, `
		SELECT id, user_id, description, status, total_count, completed_count, failed_count, created_at, updated_at
		FROM backtest_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &b, err
}

// CreateWithJobs inserts the batch row and every child job row in a
// single transaction, so a batch is never visible with a partial set of
// children (spec §4.8 step 3).
func (r *BatchRepository) CreateWithJobs(ctx context.Context, batch *domain.BacktestBatch, jobs []domain.BacktestJob) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO backtest_batches (user_id, description, status, total_count, completed_count, failed_count)
		VALUES ($1, $2, $3, $4, 0, 0)
		RETURNING id, created_at, updated_at`,
		batch.UserID, batch.Description, batch.Status, batch.TotalCount)
	if err := row.Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		return err
	}

	for i := range jobs {
		jobs[i].BatchID = &batch.ID
		row := tx.QueryRowContext(ctx, `
			INSERT INTO backtest_jobs
				(user_id, strategy_id, ticker, timeframe, start_date, end_date, status,
				 strategy_definition_snapshot, simulation_params, batch_id, counts_towards_limit, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at`,
			jobs[i].UserID, jobs[i].StrategyID, jobs[i].Ticker, jobs[i].Timeframe,
			jobs[i].StartDate, jobs[i].EndDate, jobs[i].Status,
			jobs[i].StrategyDefinitionSnapshot, jobs[i].SimulationParams, jobs[i].BatchID,
			jobs[i].CountsTowardsLimit, jobs[i].ErrorMessage)
		if err := row.Scan(&jobs[i].ID, &jobs[i].CreatedAt, &jobs[i].UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordChildTerminal atomically increments the completed or failed
// counter and recomputes status in one conditional UPDATE, so two children
// finishing concurrently can never lose one another's increment (spec
// §4.8's "single conditional SQL statement" requirement).
func (r *BatchRepository) RecordChildTerminal(ctx context.Context, batchID string, succeeded bool) (domain.BacktestBatch, error) {
	counterColumn := "failed_count"
	if succeeded {
		counterColumn = "completed_count"
	}

	query := fmt.Sprintf(`
		UPDATE backtest_batches
		SET %s = %s + 1,
		    updated_at = now(),
		    status = CASE
		        WHEN completed_count + failed_count + 1 < total_count THEN $2
		        WHEN failed_count + (CASE WHEN $3 THEN 0 ELSE 1 END) = total_count THEN $4
		        WHEN completed_count + (CASE WHEN $3 THEN 1 ELSE 0 END) = total_count THEN $5
		        ELSE $6
		    END
		WHERE id = $1
		RETURNING id, user_id, description, status, total_count, completed_count, failed_count, created_at, updated_at`,
		counterColumn, counterColumn)

	var b domain.BacktestBatch
	err := r.db.QueryRowxContext(ctx, query, batchID,
		domain.BatchStatusRunning, succeeded, domain.BatchStatusFailed,
		domain.BatchStatusCompleted, domain.BatchStatusPartiallyFailed).StructScan(&b)
	return b, err
}
