// Package withdraw implements the withdrawal eligibility gate and the
// task-start gate. Both are pure decision functions over the wallet and
// position state: they return queryable reason codes rather than
// errors, and callers fail closed if the operation is attempted anyway.
package withdraw

import (
	"github.com/shopspring/decimal"

	"one-travel-working/internal/curriculum"
	"one-travel-working/internal/model"
)

// Reason identifies why a gate check passed or failed.
type Reason string

// Gate decision reason codes.
const (
	ReasonOK               Reason = "ok"
	ReasonNotApproved      Reason = "account_not_approved"
	ReasonNegativeBalance  Reason = "negative_balance"
	ReasonSetsIncomplete   Reason = "sets_incomplete"
	ReasonBelowMinimum     Reason = "below_minimum_amount"
	ReasonExceedsAvailable Reason = "exceeds_available_balance"
	ReasonAwaitingReset    Reason = "awaiting_admin_reset"
)

// AdminRules are the admin-configured withdrawal rules, supplied as a
// read-only snapshot per operation.
type AdminRules struct {
	AllowWithoutCompletion bool
	MinBalance             decimal.Decimal
}

// Gate evaluates withdrawal and task-start eligibility.
type Gate struct {
	curriculum *curriculum.Curriculum
}

// NewGate creates a Gate over the given curriculum shape.
func NewGate(c *curriculum.Curriculum) *Gate {
	return &Gate{curriculum: c}
}

// AvailableBalance returns the withdrawable subset of the balance.
// While the trial bonus is active its portion of the balance is not
// withdrawable; the result never goes below zero.
func AvailableBalance(w *model.Wallet) decimal.Decimal {
	if !w.IsFirstTime() {
		return w.Balance
	}
	available := w.Balance.Sub(w.TrialBonus)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// CanWithdraw decides whether a withdrawal of amount is admissible for
// the wallet, the user's completed-task count, and the admin rules. A
// negative balance hard-blocks everything. First-time users (active
// trial bonus) need one completed set; returning users need the full
// curriculum, unless the admin waiver is set.
func (g *Gate) CanWithdraw(w *model.Wallet, totalTasksCompleted int, amount decimal.Decimal, rules AdminRules) (bool, Reason) {
	if w.Balance.IsNegative() {
		return false, ReasonNegativeBalance
	}

	if !rules.AllowWithoutCompletion {
		required := g.curriculum.Sets()
		if w.IsFirstTime() {
			required = 1
		}
		if g.curriculum.SetsCompleted(totalTasksCompleted) < required {
			return false, ReasonSetsIncomplete
		}
	}

	if amount.LessThan(rules.MinBalance) {
		return false, ReasonBelowMinimum
	}
	if amount.GreaterThan(AvailableBalance(w)) {
		return false, ReasonExceedsAvailable
	}

	return true, ReasonOK
}

// CanStartTask decides whether the user may begin their next task.
// Frozen or unapproved accounts, a negative balance, and the terminal
// end-of-curriculum position are all hard locks surfaced as explicit
// states, not errors.
func (g *Gate) CanStartTask(u *model.User, w *model.Wallet) (bool, Reason) {
	if u.Status != model.StatusApproved {
		return false, ReasonNotApproved
	}
	if w.Balance.IsNegative() {
		return false, ReasonNegativeBalance
	}
	if g.curriculum.IsTerminal(curriculum.Position{Set: u.CurrentSet, Task: u.CurrentTask}) {
		return false, ReasonAwaitingReset
	}
	return true, ReasonOK
}
