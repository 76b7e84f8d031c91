// Package postgres holds the relational-store repositories: one struct per
// table wrapping a *sqlx.DB, with context-scoped methods, grounded on the
// teacher's repository method shapes and translated into sqlx idiom against
// the strategies/backtest_jobs/backtest_batches/tickers schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type TickerRepository struct {
	db *sqlx.DB
}

func NewTickerRepository(db *sqlx.DB) *TickerRepository {
	return &TickerRepository{db: db}
}

func (r *TickerRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Ticker, error) {
	var t domain.Ticker
	err := r.db.GetContext(ctx, &t, `
		SELECT symbol, market_id, lot_size, min_step, decimals, currency, is_active, list_level
		FROM tickers WHERE symbol = $1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveTickers lists tickers active in the given market, for the
// collector scheduler's per-tick fan-out.
func (r *TickerRepository) ActiveTickers(ctx context.Context, market string) ([]domain.Ticker, error) {
	var tickers []domain.Ticker
	err := r.db.SelectContext(ctx, &tickers, `
		SELECT symbol, market_id, lot_size, min_step, decimals, currency, is_active, list_level
		FROM tickers WHERE market_id = $1 AND is_active = true`, market)
	return tickers, err
}
