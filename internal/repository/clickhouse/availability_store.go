package clickhouse

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
)

type AvailabilityStore struct {
	db *sqlx.DB
}

func NewAvailabilityStore(db *sqlx.DB) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

// CheckAvailability reads period bounds and the capped lookback candle
// count in one query against candles_base. Per-indicator coverage is not
// part of that query: it is a second round trip, through
// IndicatorStore.Coverage, made only when indicatorKeys is non-empty.
func (s *AvailabilityStore) CheckAvailability(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time, maxLookback int, indicatorKeys []string) (repository.AvailabilityResult, error) {
	var bounds struct {
		PeriodFirst *time.Time `db:"period_first_candle"`
		PeriodLast  *time.Time `db:"period_last_candle"`
		LookbackN   int        `db:"lookback_candles_count"`
	}
	err := s.db.GetContext(ctx, &bounds, `
		SELECT
			(SELECT min(begin) FROM candles_base WHERE ticker = $1 AND timeframe = $2 AND begin BETWEEN $3 AND $4) AS period_first_candle,
			(SELECT max(begin) FROM candles_base WHERE ticker = $1 AND timeframe = $2 AND begin BETWEEN $3 AND $4) AS period_last_candle,
			least(
				(SELECT count(*) FROM candles_base WHERE ticker = $1 AND timeframe = $2 AND begin < $3),
				$5::int
			) AS lookback_candles_count`,
		ticker, string(tf), start, end, maxLookback)
	if err != nil {
		return repository.AvailabilityResult{}, err
	}

	coverage := make(map[string]int, len(indicatorKeys))
	if len(indicatorKeys) > 0 {
		indicators := NewIndicatorStore(s.db)
		lookbackStart := start.AddDate(0, 0, -maxLookback)
		coverage, err = indicators.Coverage(ctx, ticker, tf, indicatorKeys, lookbackStart, end)
		if err != nil {
			return repository.AvailabilityResult{}, err
		}
	}

	return repository.AvailabilityResult{
		PeriodFirstCandle:    bounds.PeriodFirst,
		PeriodLastCandle:     bounds.PeriodLast,
		LookbackCandlesCount: bounds.LookbackN,
		IndicatorCoverage:    coverage,
	}, nil
}
