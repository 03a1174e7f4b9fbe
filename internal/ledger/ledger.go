// Package ledger implements the wallet ledger: the only component that
// mutates monetary state. Every mutation is a pure transition from the
// current wallet value to the next one, so a caller can persist the
// result atomically or throw it away on conflict and retry.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"one-travel-working/internal/model"
	"one-travel-working/internal/premium"
)

// Errors for ledger transitions.
var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// trialFloor absorbs division residue when the per-task decrement does
// not divide the initial bonus evenly.
var trialFloor = decimal.New(1, -2)

// Config holds the ledger constants.
type Config struct {
	// InitialTrialBonus is the onboarding credit granted at registration.
	InitialTrialBonus decimal.Decimal
	// TasksPerSet controls the trial bonus decay: the bonus is burned
	// down in equal fractions over one full set of tasks.
	TasksPerSet int
}

// Ledger applies wallet transitions.
type Ledger struct {
	initialTrialBonus decimal.Decimal
	trialDecrement    decimal.Decimal
}

// New creates a Ledger from the given constants.
func New(cfg Config) *Ledger {
	tasks := cfg.TasksPerSet
	if tasks < 1 {
		tasks = 1
	}
	return &Ledger{
		initialTrialBonus: cfg.InitialTrialBonus,
		trialDecrement:    cfg.InitialTrialBonus.Div(decimal.NewFromInt(int64(tasks))),
	}
}

// InitialTrialBonus returns the onboarding credit constant.
func (l *Ledger) InitialTrialBonus() decimal.Decimal {
	return l.initialTrialBonus
}

// sameDay reports whether two instants fall on the same UTC calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ApplyDailyReset zeroes TodayPoints on the first touch of a new
// calendar day. It is idempotent: repeated calls within the same day
// leave the wallet unchanged. Callers must pass one canonical now per
// operation so requests straddling midnight observe a consistent state.
func (l *Ledger) ApplyDailyReset(w model.Wallet, now time.Time) model.Wallet {
	if sameDay(w.LastResetDate, now) {
		return w
	}
	w.TodayPoints = decimal.Zero
	w.LastResetDate = now.UTC().Truncate(24 * time.Hour)
	return w
}

// ApplyTaskCompletion applies one completed task to the wallet as a
// single transition: the reward lands on the balance, premium side
// effects (if any) sweep the pre-reward balance into pending and deduct
// the penalty, today's points and lifetime earnings accrue, and the
// trial bonus decays one step. Returns the next wallet state and the
// completion event describing the deltas.
func (l *Ledger) ApplyTaskCompletion(w model.Wallet, setNumber, taskNumber int, reward decimal.Decimal, effect *premium.Effect, now time.Time) (model.Wallet, model.TaskCompletionEvent) {
	w = l.ApplyDailyReset(w, now)

	balanceBefore := w.Balance
	pendingBefore := w.PendingAmount

	w.Balance = w.Balance.Add(reward)
	if effect != nil {
		w.Balance = w.Balance.Sub(effect.Penalty)
		w.PendingAmount = w.PendingAmount.Add(effect.MovedToPending)
		// Pending is escrow and can never be negative, even if the
		// swept balance was.
		if w.PendingAmount.IsNegative() {
			w.PendingAmount = decimal.Zero
		}
	}

	w.TodayPoints = w.TodayPoints.Add(reward)
	w.TotalEarnings = w.TotalEarnings.Add(reward)

	// The trial bonus decays on every completion, premium or not. The
	// decrement is a non-terminating fraction for most set sizes, so
	// anything below a cent collapses to the zero floor.
	if w.TrialBonus.IsPositive() {
		w.TrialBonus = w.TrialBonus.Sub(l.trialDecrement)
		if w.TrialBonus.LessThan(trialFloor) {
			w.TrialBonus = decimal.Zero
		}
	}

	w.UpdatedAt = now

	return w, model.TaskCompletionEvent{
		UserID:       w.UserID,
		SetNumber:    setNumber,
		TaskNumber:   taskNumber,
		Reward:       reward,
		Premium:      effect != nil,
		BalanceDelta: w.Balance.Sub(balanceBefore),
		PendingDelta: w.PendingAmount.Sub(pendingBefore),
		CompletedAt:  now,
	}
}

// ApplyWithdrawal reserves the amount immediately: the balance drops
// and the lifetime withdrawn accumulator grows even though admin
// approval is still pending. Eligibility must have been checked by the
// caller before this transition.
func (l *Ledger) ApplyWithdrawal(w model.Wallet, amount decimal.Decimal, now time.Time) (model.Wallet, error) {
	if !amount.IsPositive() {
		return w, ErrNonPositiveAmount
	}
	w = l.ApplyDailyReset(w, now)
	w.Balance = w.Balance.Sub(amount)
	w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	w.UpdatedAt = now
	return w, nil
}

// CancelWithdrawal restores a cancelled withdrawal's reservation. The
// caller guarantees exactly-once semantics via the request's status
// transition; the ledger just puts the money back.
func (l *Ledger) CancelWithdrawal(w model.Wallet, amount decimal.Decimal, now time.Time) (model.Wallet, error) {
	if !amount.IsPositive() {
		return w, ErrNonPositiveAmount
	}
	w = l.ApplyDailyReset(w, now)
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = now
	return w, nil
}

// Adjust applies a manual admin balance correction. The delta may be
// negative; lifetime accumulators are untouched.
func (l *Ledger) Adjust(w model.Wallet, delta decimal.Decimal, now time.Time) model.Wallet {
	w = l.ApplyDailyReset(w, now)
	w.Balance = w.Balance.Add(delta)
	w.UpdatedAt = now
	return w
}

// ReleasePending moves the entire escrowed pending amount back into the
// balance. This is the admin-side release of premium-task sweeps.
func (l *Ledger) ReleasePending(w model.Wallet, now time.Time) (model.Wallet, decimal.Decimal) {
	w = l.ApplyDailyReset(w, now)
	released := w.PendingAmount
	w.Balance = w.Balance.Add(released)
	w.PendingAmount = decimal.Zero
	w.UpdatedAt = now
	return w, released
}

// ResetForNewCycle returns the wallet to its onboarding state: zero
// balances and a fresh trial bonus. Lifetime accumulators survive.
func (l *Ledger) ResetForNewCycle(w model.Wallet, now time.Time) model.Wallet {
	w.Balance = decimal.Zero
	w.PendingAmount = decimal.Zero
	w.TrialBonus = l.initialTrialBonus
	w.TodayPoints = decimal.Zero
	w.LastResetDate = now.UTC().Truncate(24 * time.Hour)
	w.UpdatedAt = now
	return w
}
