// Package premium implements the premium task rule engine: matching a
// task position against admin-authored configs and computing the
// penalty and pending-sweep side effects of a premium completion.
package premium

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/model"
)

// Effect describes the wallet side effects of completing a premium
// task. MovedToPending is the amount swept from balance into escrow;
// Penalty is deducted from the post-reward balance separately.
type Effect struct {
	Penalty           decimal.Decimal
	AdditionalPending decimal.Decimal
	MovedToPending    decimal.Decimal
}

// Engine matches task positions against premium configs.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates an Engine that reports data-integrity anomalies to
// the given logger.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Match returns the active config for the given (set, task) position,
// or nil if the task is a normal task. If more than one active config
// matches the same position the store's uniqueness invariant has been
// violated; the engine picks the most recently created one
// deterministically and logs a warning rather than failing the task.
func (e *Engine) Match(setNumber, taskNumber int, configs []model.PremiumTaskConfig) *model.PremiumTaskConfig {
	var matched *model.PremiumTaskConfig
	duplicates := 0

	for i := range configs {
		cfg := &configs[i]
		if !cfg.Active || cfg.SetNumber != setNumber || cfg.TaskNumber != taskNumber {
			continue
		}
		if matched == nil {
			matched = cfg
			continue
		}
		duplicates++
		if cfg.CreatedAt.After(matched.CreatedAt) ||
			(cfg.CreatedAt.Equal(matched.CreatedAt) && cfg.ID > matched.ID) {
			matched = cfg
		}
	}

	if duplicates > 0 {
		e.logger.Warn().
			Int("set", setNumber).
			Int("task", taskNumber).
			Int("duplicates", duplicates+1).
			Int64("selected_config_id", matched.ID).
			Msg("Multiple active premium configs for one position, most recent wins")
	}

	return matched
}

// EffectFor computes the side effects of completing the matched premium
// task, given the wallet balance before this task's reward is applied.
// The entire pre-reward balance is swept into pending plus a fixed
// additional amount, and the penalty is deducted from the post-reward
// balance.
func EffectFor(cfg *model.PremiumTaskConfig, balanceBeforeReward decimal.Decimal) Effect {
	return Effect{
		Penalty:           cfg.PenaltyAmount,
		AdditionalPending: cfg.AdditionalPending,
		MovedToPending:    balanceBeforeReward.Add(cfg.AdditionalPending),
	}
}
