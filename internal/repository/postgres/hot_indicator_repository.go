package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

// HotIndicatorRepository resolves the set of indicators the RT pipeline
// (C6) must keep materialized for a ticker, sourced from
// system_indicators (platform-wide defaults) union users_indicators
// (per-user additions) both filtered to is_hot. HotIndicators does not
// filter on its timeframe argument: every timeframe gets the same set.
type HotIndicatorRepository struct {
	db *sqlx.DB
}

func NewHotIndicatorRepository(db *sqlx.DB) *HotIndicatorRepository {
	return &HotIndicatorRepository{db: db}
}

type hotIndicatorRow struct {
	Name   string `db:"name"`
	Params []byte `db:"params"`
}

func (r *HotIndicatorRepository) HotIndicators(ctx context.Context, ticker string, tf domain.Timeframe) ([]domain.IndicatorDef, error) {
	var rows []hotIndicatorRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT name, params FROM system_indicators WHERE is_hot = true
		UNION
		SELECT name, params FROM users_indicators WHERE is_hot = true AND (ticker = $1 OR ticker IS NULL)`,
		ticker)
	if err != nil {
		return nil, err
	}

	defs := make([]domain.IndicatorDef, 0, len(rows))
	for _, row := range rows {
		params, err := decodeParams(row.Params)
		if err != nil {
			return nil, err
		}
		defs = append(defs, domain.IndicatorDef{Name: row.Name, Params: params, IsHot: true})
	}
	return defs, nil
}

func decodeParams(raw []byte) (map[string]float64, error) {
	if len(raw) == 0 {
		return map[string]float64{}, nil
	}
	var params map[string]float64
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
