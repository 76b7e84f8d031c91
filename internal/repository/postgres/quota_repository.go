package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// QuotaRepository tracks per-user daily and concurrent backtest quota
// counters in a dedicated table, checked and incremented atomically so
// concurrent submissions can't both pass a check that only one of them
// should have.
type QuotaRepository struct {
	db            *sqlx.DB
	dailyLimit    int
	concurrentCap int
}

func NewQuotaRepository(db *sqlx.DB, dailyLimit, concurrentCap int) *QuotaRepository {
	return &QuotaRepository{db: db, dailyLimit: dailyLimit, concurrentCap: concurrentCap}
}

// CheckAndReserve atomically increments the user's daily and in-flight
// counters by childCount, rolling back the whole reservation if either
// limit would be exceeded.
func (r *QuotaRepository) CheckAndReserve(ctx context.Context, userID string, childCount int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var dailyUsed, concurrentUsed int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_backtest_quota (user_id, daily_count, concurrent_count, quota_date)
		VALUES ($1, 0, 0, CURRENT_DATE)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_count = CASE WHEN user_backtest_quota.quota_date = CURRENT_DATE THEN user_backtest_quota.daily_count ELSE 0 END,
			concurrent_count = user_backtest_quota.concurrent_count,
			quota_date = CURRENT_DATE
		RETURNING daily_count, concurrent_count`,
		userID).Scan(&dailyUsed, &concurrentUsed)
	if err != nil {
		return err
	}

	if dailyUsed+childCount > r.dailyLimit {
		return fmt.Errorf("daily backtest quota exceeded: %d + %d > %d", dailyUsed, childCount, r.dailyLimit)
	}
	if concurrentUsed+childCount > r.concurrentCap {
		return fmt.Errorf("concurrent backtest quota exceeded: %d + %d > %d", concurrentUsed, childCount, r.concurrentCap)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_backtest_quota
		SET daily_count = daily_count + $2, concurrent_count = concurrent_count + $2
		WHERE user_id = $1`, userID, childCount); err != nil {
		return err
	}

	return tx.Commit()
}

// Release decrements the concurrent counter once a reserved job reaches a
// terminal state, freeing capacity for new submissions.
func (r *QuotaRepository) Release(ctx context.Context, userID string, count int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_backtest_quota
		SET concurrent_count = GREATEST(concurrent_count - $2, 0)
		WHERE user_id = $1`, userID, count)
	return err
}
