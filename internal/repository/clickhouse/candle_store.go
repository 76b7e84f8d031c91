// Package clickhouse implements the analytical column store surfaces
// (CandleStore, IndicatorStore, AvailabilityStore) against ClickHouse,
// grounded on the teacher's postgres/candle_repository.go batched-upsert
// shape (StoreBatch, one transaction per batch) translated onto
// ClickHouse's last-write-wins ReplacingMergeTree idiom: there is no
// ON CONFLICT to race against, a plain batched INSERT is the upsert —
// the engine discards older-versioned duplicate rows during background
// merges, per spec §6's candles_base/candles_indicators table notes.
package clickhouse

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type CandleStore struct {
	db *sqlx.DB
}

func NewCandleStore(db *sqlx.DB) *CandleStore {
	return &CandleStore{db: db}
}

func (s *CandleStore) UpsertBatch(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles_base (ticker, timeframe, begin, open, high, low, close, volume, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Ticker, string(c.Timeframe), c.Begin, c.Open, c.High, c.Low, c.Close, c.Volume, c.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *CandleStore) GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	var candles []domain.Candle
	err := s.db.SelectContext(ctx, &candles, `
		SELECT ticker, timeframe, begin, open, high, low, close, volume, value
		FROM candles_base
		WHERE ticker = $1 AND timeframe = $2 AND begin BETWEEN $3 AND $4
		ORDER BY begin ASC`, ticker, string(tf), start, end)
	return candles, err
}

func (s *CandleStore) GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	var desc []domain.Candle
	err := s.db.SelectContext(ctx, &desc, `
		SELECT ticker, timeframe, begin, open, high, low, close, volume, value
		FROM candles_base
		WHERE ticker = $1 AND timeframe = $2
		ORDER BY begin DESC
		LIMIT $3`, ticker, string(tf), n)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candle, len(desc))
	for i, c := range desc {
		out[len(desc)-1-i] = c
	}
	return out, nil
}

func (s *CandleStore) MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	var maxBegin *time.Time
	err := s.db.GetContext(ctx, &maxBegin, `
		SELECT max(begin) FROM candles_base WHERE ticker = $1 AND timeframe = $2`, ticker, string(tf))
	if err != nil {
		return time.Time{}, false, err
	}
	if maxBegin == nil {
		return time.Time{}, false, nil
	}
	return *maxBegin, true, nil
}
