// Package model defines the data models for the One Travel Working platform.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

// User account states. Only approved users may complete tasks or withdraw.
const (
	StatusPending  UserStatus = "pending"
	StatusApproved UserStatus = "approved"
	StatusFrozen   UserStatus = "frozen"
)

// User represents a platform member and their position in the task
// curriculum. CurrentSet is in [1,3] and CurrentTask is 1-indexed in
// [1,30] while a set is active; CurrentTask == 31 in set 3 marks the
// terminal "awaiting reset" state.
type User struct {
	ID                  int64      `db:"id"`
	Username            string     `db:"username"`
	Status              UserStatus `db:"status"`
	CurrentSet          int        `db:"current_set"`
	CurrentTask         int        `db:"current_task"`
	TotalTasksCompleted int        `db:"total_tasks_completed"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Wallet holds all monetary state for a user. Exactly one wallet exists
// per user. Balance may go negative; PendingAmount never may. Version is
// the optimistic-concurrency counter bumped on every save.
type Wallet struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`
	Balance        decimal.Decimal `db:"balance"`
	PendingAmount  decimal.Decimal `db:"pending_amount"`
	TrialBonus     decimal.Decimal `db:"trial_bonus"`
	TodayPoints    decimal.Decimal `db:"today_points"`
	TotalEarnings  decimal.Decimal `db:"total_earnings"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn"`
	LastResetDate  time.Time       `db:"last_reset_date"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// IsFirstTime reports whether the user is still in the trial period.
// First-time status is derived from the trial bonus, never stored
// separately.
func (w *Wallet) IsFirstTime() bool {
	return w.TrialBonus.IsPositive()
}

// PremiumTaskConfig is an admin-authored rule marking one (set, task)
// position as a premium task with penalty and pending-sweep side
// effects. At most one active config should exist per position.
type PremiumTaskConfig struct {
	ID                int64           `db:"id"`
	SetNumber         int             `db:"set_number"`
	TaskNumber        int             `db:"task_number"`
	PenaltyAmount     decimal.Decimal `db:"penalty_amount"`
	AdditionalPending decimal.Decimal `db:"additional_pending"`
	Active            bool            `db:"active"`
	CreatedAt         time.Time       `db:"created_at"`
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

// Withdrawal request states.
const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// WithdrawalRequest records a user's request to withdraw funds. The
// amount is deducted from the wallet when the request is created;
// cancellation restores it exactly once.
type WithdrawalRequest struct {
	ID          int64            `db:"id"`
	UserID      int64            `db:"user_id"`
	Amount      decimal.Decimal  `db:"amount"`
	Status      WithdrawalStatus `db:"status"`
	RequestedAt time.Time        `db:"requested_at"`
	ProcessedAt *time.Time       `db:"processed_at"`
}

// Transaction represents one audit-trail entry for a wallet change.
type Transaction struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Amount      decimal.Decimal `db:"amount"`
	Type        string          `db:"type"`
	Description *string         `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Transaction types for categorizing wallet changes.
const (
	TxTypeTaskReward       = "task_reward"       // Reward for a completed booking task
	TxTypePremiumPenalty   = "premium_penalty"   // Penalty deducted by a premium task
	TxTypePremiumSweep     = "premium_sweep"     // Balance swept into pending by a premium task
	TxTypeWithdrawal       = "withdrawal"        // Withdrawal request reservation
	TxTypeWithdrawalCancel = "withdrawal_cancel" // Cancelled withdrawal restoration
	TxTypePendingRelease   = "pending_release"   // Admin release of escrowed funds
	TxTypeAdminAdjust      = "admin_adjust"      // Manual admin balance adjustment
	TxTypeTrialGrant       = "trial_grant"       // Onboarding trial bonus grant
)

// TaskCompletionEvent describes one completed task as a single atomic
// wallet transition. It is handed to the audit trail after the
// transaction commits; it is not itself persisted.
type TaskCompletionEvent struct {
	UserID       int64
	SetNumber    int
	TaskNumber   int
	Reward       decimal.Decimal
	Premium      bool
	BalanceDelta decimal.Decimal
	PendingDelta decimal.Decimal
	CompletedAt  time.Time
}
