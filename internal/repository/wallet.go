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

// Errors for wallet persistence.
var (
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrVersionConflict means another writer saved the wallet between
	// this caller's read and write. Callers retry with a fresh read;
	// this is never a user-facing validation error.
	ErrVersionConflict = errors.New("wallet version conflict")
)

// WalletRepository handles wallet persistence. Saves use an optimistic
// version check so a stale read-modify-write cycle fails instead of
// silently clobbering a concurrent update.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const walletColumns = `id, user_id, balance, pending_amount, trial_bonus, today_points,
	total_earnings, total_withdrawn, last_reset_date, version, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Balance,
		&w.PendingAmount,
		&w.TrialBonus,
		&w.TodayPoints,
		&w.TotalEarnings,
		&w.TotalWithdrawn,
		&w.LastResetDate,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateForUser creates the user's wallet with the onboarding trial
// bonus. Each user owns exactly one wallet; the user_id uniqueness
// constraint enforces it.
func (r *WalletRepository) CreateForUser(ctx context.Context, userID int64, trialBonus decimal.Decimal) (*model.Wallet, error) {
	query := `
		INSERT INTO wallets (user_id, balance, pending_amount, trial_bonus, today_points,
			total_earnings, total_withdrawn, last_reset_date, version, created_at, updated_at)
		VALUES ($1, 0, 0, $2, 0, 0, 0, CURRENT_DATE, 1, NOW(), NOW())
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID, trialBonus))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// GetByUserID retrieves a user's wallet.
// Returns ErrWalletNotFound if the user has no wallet.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// SaveWithPosition persists the wallet and the user's task position in
// one transaction: a task completion updates both or neither. The
// wallet row is guarded by its version; on success the passed wallet's
// version is bumped to match the stored row.
func (r *WalletRepository) SaveWithPosition(ctx context.Context, w *model.Wallet, u *model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const walletQuery = `
		UPDATE wallets
		SET balance = $3, pending_amount = $4, trial_bonus = $5, today_points = $6,
			total_earnings = $7, total_withdrawn = $8, last_reset_date = $9,
			version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND version = $2
	`

	res, err := tx.Exec(ctx, walletQuery,
		w.UserID, w.Version,
		w.Balance, w.PendingAmount, w.TrialBonus, w.TodayPoints,
		w.TotalEarnings, w.TotalWithdrawn, w.LastResetDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	const userQuery = `
		UPDATE users
		SET current_set = $2, current_task = $3, total_tasks_completed = $4, updated_at = NOW()
		WHERE id = $1
	`

	res, err = tx.Exec(ctx, userQuery, u.ID, u.CurrentSet, u.CurrentTask, u.TotalTasksCompleted)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wallet save: %w", err)
	}

	w.Version++
	return nil
}

// Save persists the wallet alone under its version guard, for
// operations that do not touch the task position.
func (r *WalletRepository) Save(ctx context.Context, w *model.Wallet) error {
	const query = `
		UPDATE wallets
		SET balance = $3, pending_amount = $4, trial_bonus = $5, today_points = $6,
			total_earnings = $7, total_withdrawn = $8, last_reset_date = $9,
			version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND version = $2
	`

	res, err := r.pool.Exec(ctx, query,
		w.UserID, w.Version,
		w.Balance, w.PendingAmount, w.TrialBonus, w.TodayPoints,
		w.TotalEarnings, w.TotalWithdrawn, w.LastResetDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	w.Version++
	return nil
}
