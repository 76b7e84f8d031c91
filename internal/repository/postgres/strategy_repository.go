package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tradeforge-core/internal/domain"
)

type StrategyRepository struct {
	db *sqlx.DB
}

func NewStrategyRepository(db *sqlx.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

type strategyRow struct {
	ID            string `db:"id"`
	UserID        string `db:"user_id"`
	Name          string `db:"name"`
	Description   string `db:"description"`
	DefinitionRaw []byte `db:"definition"`
	IsDeleted     bool   `db:"is_deleted"`
}

func (r *StrategyRepository) GetByID(ctx context.Context, id string) (*domain.Strategy, error) {
	var row strategyRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, description, definition, is_deleted
		FROM strategies WHERE id = $1 AND is_deleted = false`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	def, err := domain.ParseStrategyDefinition(row.DefinitionRaw)
	if err != nil {
		return nil, err
	}
	return &domain.Strategy{
		ID: row.ID, UserID: row.UserID, Name: row.Name, Description: row.Description,
		Definition: def, DefinitionRaw: row.DefinitionRaw, IsDeleted: row.IsDeleted,
	}, nil
}

func (r *StrategyRepository) Create(ctx context.Context, s *domain.Strategy) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO strategies (id, user_id, name, description, definition, is_deleted)
		VALUES (:id, :user_id, :name, :description, :definition, :is_deleted)`,
		map[string]interface{}{
			"id": s.ID, "user_id": s.UserID, "name": s.Name, "description": s.Description,
			"definition": s.DefinitionRaw, "is_deleted": s.IsDeleted,
		})
	return err
}

func (r *StrategyRepository) Update(ctx context.Context, s *domain.Strategy) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE strategies
		SET name = $2, description = $3, definition = $4, updated_at = now()
		WHERE id = $1 AND is_deleted = false`,
		s.ID, s.Name, s.Description, s.DefinitionRaw)
	return err
}

func (r *StrategyRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE strategies SET is_deleted = true, updated_at = now() WHERE id = $1`, id)
	return err
}
