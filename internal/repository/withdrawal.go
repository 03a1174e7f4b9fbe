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

// Errors for withdrawal persistence.
var (
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
	// ErrAlreadyProcessed means the request already left the pending
	// state. Cancellation retries hit this instead of restoring the
	// balance twice.
	ErrAlreadyProcessed = errors.New("withdrawal request already processed")
)

// WithdrawalRepository handles withdrawal request persistence. Status
// transitions are guarded in SQL: pending is the only state a request
// can be approved or cancelled from, so each transition happens at most
// once.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

const withdrawalColumns = `id, user_id, amount, status, requested_at, processed_at`

func scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := row.Scan(
		&wr.ID,
		&wr.UserID,
		&wr.Amount,
		&wr.Status,
		&wr.RequestedAt,
		&wr.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

// Create records a new pending withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, userID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error) {
	query := `
		INSERT INTO withdrawal_requests (user_id, amount, status, requested_at)
		VALUES ($1, $2, 'pending', NOW())
		RETURNING ` + withdrawalColumns

	wr, err := scanWithdrawal(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return wr, nil
}

// GetByID retrieves a withdrawal request.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	wr, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return wr, nil
}

// markProcessed transitions a pending request into a final status.
func (r *WithdrawalRepository) markProcessed(ctx context.Context, id int64, status model.WithdrawalStatus) (*model.WithdrawalRequest, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + withdrawalColumns

	wr, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing request from a processed one.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("failed to mark withdrawal %s: %w", status, err)
	}
	return wr, nil
}

// MarkCancelled transitions pending -> cancelled. The caller restores
// the wallet balance exactly once, after this succeeds.
func (r *WithdrawalRepository) MarkCancelled(ctx context.Context, id int64) (*model.WithdrawalRequest, error) {
	return r.markProcessed(ctx, id, model.WithdrawalCancelled)
}

// MarkApproved transitions pending -> approved. Approved withdrawals
// never restore the balance; the reservation becomes final.
func (r *WithdrawalRepository) MarkApproved(ctx context.Context, id int64) (*model.WithdrawalRequest, error) {
	return r.markProcessed(ctx, id, model.WithdrawalApproved)
}

// ListByUser retrieves a user's withdrawal requests, newest first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.WithdrawalRequest
	for rows.Next() {
		wr, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, wr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal requests: %w", err)
	}
	return requests, nil
}

// ListPending retrieves pending requests across all users, oldest
// first, for the admin processing queue.
func (r *WithdrawalRepository) ListPending(ctx context.Context, limit int) ([]*model.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY requested_at
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	defer rows.Close()

	var requests []*model.WithdrawalRequest
	for rows.Next() {
		wr, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, wr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending withdrawals: %w", err)
	}
	return requests, nil
}
