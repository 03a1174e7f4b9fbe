package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/model"
)

// Errors for premium config persistence.
var (
	ErrConfigNotFound = errors.New("premium task config not found")
)

// PremiumConfigRepository handles admin-authored premium task rules.
type PremiumConfigRepository struct {
	pool *pgxpool.Pool
}

// NewPremiumConfigRepository creates a new PremiumConfigRepository instance.
func NewPremiumConfigRepository(pool *pgxpool.Pool) *PremiumConfigRepository {
	return &PremiumConfigRepository{pool: pool}
}

const premiumColumns = `id, set_number, task_number, penalty_amount, additional_pending, active, created_at`

func scanPremiumConfig(row pgx.Row) (*model.PremiumTaskConfig, error) {
	var c model.PremiumTaskConfig
	err := row.Scan(
		&c.ID,
		&c.SetNumber,
		&c.TaskNumber,
		&c.PenaltyAmount,
		&c.AdditionalPending,
		&c.Active,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActive retrieves the active config set, the snapshot handed to the
// rule engine per task completion.
func (r *PremiumConfigRepository) GetActive(ctx context.Context) ([]model.PremiumTaskConfig, error) {
	query := `SELECT ` + premiumColumns + ` FROM premium_task_configs WHERE active ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get premium configs: %w", err)
	}
	defer rows.Close()

	var configs []model.PremiumTaskConfig
	for rows.Next() {
		c, err := scanPremiumConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan premium config: %w", err)
		}
		configs = append(configs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating premium configs: %w", err)
	}
	return configs, nil
}

// Upsert replaces the active rule for one (set, task) position:
// existing active configs for the position are deactivated and the new
// rule inserted, in one transaction. Re-running with the same values is
// safe and leaves exactly one active config for the position.
func (r *PremiumConfigRepository) Upsert(ctx context.Context, setNumber, taskNumber int, penalty, additionalPending decimal.Decimal) (*model.PremiumTaskConfig, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const deactivate = `
		UPDATE premium_task_configs
		SET active = FALSE
		WHERE set_number = $1 AND task_number = $2 AND active
	`
	if _, err := tx.Exec(ctx, deactivate, setNumber, taskNumber); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous configs: %w", err)
	}

	insert := `
		INSERT INTO premium_task_configs (set_number, task_number, penalty_amount, additional_pending, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING ` + premiumColumns

	c, err := scanPremiumConfig(tx.QueryRow(ctx, insert, setNumber, taskNumber, penalty, additionalPending))
	if err != nil {
		return nil, fmt.Errorf("failed to insert premium config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit premium config upsert: %w", err)
	}
	return c, nil
}

// Deactivate retires a premium rule by id.
// Returns ErrConfigNotFound if no active config has that id.
func (r *PremiumConfigRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `
		UPDATE premium_task_configs
		SET active = FALSE
		WHERE id = $1 AND active
	`

	res, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate premium config: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return nil
}
