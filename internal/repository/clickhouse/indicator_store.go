package clickhouse

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type IndicatorStore struct {
	db *sqlx.DB
}

func NewIndicatorStore(db *sqlx.DB) *IndicatorStore {
	return &IndicatorStore{db: db}
}

func (s *IndicatorStore) UpsertBatch(ctx context.Context, points []domain.IndicatorSeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles_indicators (ticker, timeframe, indicator_key, begin, value, version)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		version := p.WrittenAt.UnixNano()
		if _, err := stmt.ExecContext(ctx, p.Ticker, string(p.Timeframe), p.IndicatorKey, p.Begin, p.Value, version); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *IndicatorStore) GetSeries(ctx context.Context, ticker string, tf domain.Timeframe, indicatorKey string, start, end time.Time) ([]domain.IndicatorSeriesPoint, error) {
	var points []domain.IndicatorSeriesPoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT ticker, timeframe, indicator_key, begin, argMax(value, version) AS value, max(version) AS written_at
		FROM candles_indicators
		WHERE ticker = $1 AND timeframe = $2 AND indicator_key = $3 AND begin BETWEEN $4 AND $5
		GROUP BY ticker, timeframe, indicator_key, begin
		ORDER BY begin ASC`, ticker, string(tf), indicatorKey, start, end)
	return points, err
}

func (s *IndicatorStore) Coverage(ctx context.Context, ticker string, tf domain.Timeframe, keys []string, start, end time.Time) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT indicator_key, count(DISTINCT begin) AS cnt
		FROM candles_indicators
		WHERE ticker = $1 AND timeframe = $2 AND indicator_key = ANY($3) AND begin BETWEEN $4 AND $5
		GROUP BY indicator_key`, ticker, string(tf), keys, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(keys))
	for rows.Next() {
		var key string
		var cnt int
		if err := rows.Scan(&key, &cnt); err != nil {
			return nil, err
		}
		out[key] = cnt
	}
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			out[k] = 0
		}
	}
	return out, rows.Err()
}
