package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"one-travel-working/internal/curriculum"
	"one-travel-working/internal/ledger"
	"one-travel-working/internal/metrics"
	"one-travel-working/internal/model"
	"one-travel-working/internal/pkg/lock"
	"one-travel-working/internal/points"
	"one-travel-working/internal/premium"
	"one-travel-working/internal/repository"
	"one-travel-working/internal/withdraw"
)

// maxSaveAttempts bounds optimistic-lock retries per request. Under the
// per-user lock conflicts only come from out-of-band admin writes, so
// one retry usually suffices.
const maxSaveAttempts = 3

// BookingService runs the task-completion flow: gate check, premium
// match, reward generation, ledger transition, and the atomic
// wallet+position save. All of a user's mutations are serialized under
// their lock.
type BookingService struct {
	userRepo    *repository.UserRepository
	walletRepo  *repository.WalletRepository
	txRepo      *repository.TransactionRepository
	premiumRepo *repository.PremiumConfigRepository
	generator   *points.Generator
	ledger      *ledger.Ledger
	curriculum  *curriculum.Curriculum
	gate        *withdraw.Gate
	engine      *premium.Engine
	locks       *lock.UserLock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// BookingDeps bundles the collaborators of a BookingService.
type BookingDeps struct {
	UserRepo    *repository.UserRepository
	WalletRepo  *repository.WalletRepository
	TxRepo      *repository.TransactionRepository
	PremiumRepo *repository.PremiumConfigRepository
	Generator   *points.Generator
	Ledger      *ledger.Ledger
	Curriculum  *curriculum.Curriculum
	Gate        *withdraw.Gate
	Engine      *premium.Engine
	Locks       *lock.UserLock
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// NewBookingService creates a new BookingService instance.
func NewBookingService(deps BookingDeps) *BookingService {
	return &BookingService{
		userRepo:    deps.UserRepo,
		walletRepo:  deps.WalletRepo,
		txRepo:      deps.TxRepo,
		premiumRepo: deps.PremiumRepo,
		generator:   deps.Generator,
		ledger:      deps.Ledger,
		curriculum:  deps.Curriculum,
		gate:        deps.Gate,
		engine:      deps.Engine,
		locks:       deps.Locks,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// TaskStatus describes whether the user may start their next task and
// where they stand in the curriculum.
type TaskStatus struct {
	Position   curriculum.Position `json:"position"`
	CanStart   bool                `json:"can_start"`
	Reason     withdraw.Reason     `json:"reason"`
	TotalDone  int                 `json:"total_tasks_completed"`
	TotalTasks int                 `json:"total_tasks"`
}

// Status returns the task-start gate decision for the user. The UI
// checks this before offering the next task; CompleteTask re-checks and
// fails closed regardless.
func (s *BookingService) Status(ctx context.Context, userID int64) (*TaskStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	canStart, reason := s.gate.CanStartTask(user, wallet)
	return &TaskStatus{
		Position:   curriculum.Position{Set: user.CurrentSet, Task: user.CurrentTask},
		CanStart:   canStart,
		Reason:     reason,
		TotalDone:  user.TotalTasksCompleted,
		TotalTasks: s.curriculum.TotalTasks(),
	}, nil
}

// CompleteTask completes the task at the user's current position as one
// atomic unit: wallet transition and position advance both persist or
// neither does. Returns the completion event describing the deltas.
func (s *BookingService) CompleteTask(ctx context.Context, userID int64) (*model.TaskCompletionEvent, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		wallet, err := s.walletRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}

		if ok, reason := s.gate.CanStartTask(user, wallet); !ok {
			return nil, &GateError{Reason: reason}
		}

		configs, err := s.premiumRepo.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load premium configs: %w", err)
		}

		var effect *premium.Effect
		match := s.engine.Match(user.CurrentSet, user.CurrentTask, configs)
		if match != nil {
			e := premium.EffectFor(match, wallet.Balance)
			effect = &e
		}

		// One canonical now for the reset check and all timestamps.
		now := time.Now().UTC()
		reward := s.generator.Generate()

		next, event := s.ledger.ApplyTaskCompletion(*wallet, user.CurrentSet, user.CurrentTask, reward, effect, now)

		pos, err := s.curriculum.Advance(curriculum.Position{Set: user.CurrentSet, Task: user.CurrentTask})
		if err != nil {
			return nil, fmt.Errorf("failed to advance position: %w", err)
		}
		user.CurrentSet = pos.Set
		user.CurrentTask = pos.Task
		user.TotalTasksCompleted++

		if err := s.walletRepo.SaveWithPosition(ctx, &next, user); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				s.metrics.VersionConflicts.Inc()
				continue
			}
			return nil, err
		}

		s.recordCompletion(ctx, &event, effect)

		premiumLabel := "no"
		if event.Premium {
			premiumLabel = "yes"
		}
		s.metrics.TasksCompleted.WithLabelValues(premiumLabel).Inc()
		rewardF, _ := reward.Float64()
		s.metrics.RewardAmount.Observe(rewardF)

		s.logger.Info().
			Int64("user_id", userID).
			Int("set", event.SetNumber).
			Int("task", event.TaskNumber).
			Str("reward", event.Reward.String()).
			Bool("premium", event.Premium).
			Msg("Task completed")

		return &event, nil
	}

	return nil, ErrTooManyConflicts
}

// recordCompletion writes the audit trail for one completion. Audit
// failures are logged, not propagated: the wallet transition already
// committed and history rows are derived data.
func (s *BookingService) recordCompletion(ctx context.Context, event *model.TaskCompletionEvent, effect *premium.Effect) {
	desc := fmt.Sprintf("Booking task %d of set %d", event.TaskNumber, event.SetNumber)
	if _, err := s.txRepo.Create(ctx, event.UserID, event.Reward, model.TxTypeTaskReward, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("Failed to record reward transaction")
	}
	if effect == nil {
		return
	}

	penaltyDesc := fmt.Sprintf("Premium task penalty at set %d task %d", event.SetNumber, event.TaskNumber)
	if _, err := s.txRepo.Create(ctx, event.UserID, effect.Penalty.Neg(), model.TxTypePremiumPenalty, &penaltyDesc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("Failed to record penalty transaction")
	}

	sweepDesc := fmt.Sprintf("Balance swept to pending at set %d task %d", event.SetNumber, event.TaskNumber)
	if _, err := s.txRepo.Create(ctx, event.UserID, event.PendingDelta, model.TxTypePremiumSweep, &sweepDesc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("Failed to record sweep transaction")
	}
}
