package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/ledger"
	"one-travel-working/internal/model"
	"one-travel-working/internal/pkg/lock"
	"one-travel-working/internal/repository"
)

// AdminService covers the back-office operations: user approval,
// premium task configuration, manual wallet corrections, and the bulk
// reset that opens a new earning cycle.
type AdminService struct {
	userRepo    *repository.UserRepository
	walletRepo  *repository.WalletRepository
	txRepo      *repository.TransactionRepository
	premiumRepo *repository.PremiumConfigRepository
	ledger      *ledger.Ledger
	locks       *lock.UserLock
	logger      zerolog.Logger
}

// AdminDeps bundles the collaborators of an AdminService.
type AdminDeps struct {
	UserRepo    *repository.UserRepository
	WalletRepo  *repository.WalletRepository
	TxRepo      *repository.TransactionRepository
	PremiumRepo *repository.PremiumConfigRepository
	Ledger      *ledger.Ledger
	Locks       *lock.UserLock
	Logger      zerolog.Logger
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(deps AdminDeps) *AdminService {
	return &AdminService{
		userRepo:    deps.UserRepo,
		walletRepo:  deps.WalletRepo,
		txRepo:      deps.TxRepo,
		premiumRepo: deps.PremiumRepo,
		ledger:      deps.Ledger,
		locks:       deps.Locks,
		logger:      deps.Logger,
	}
}

// ApproveUser moves a pending user to approved so they can start tasks.
func (s *AdminService) ApproveUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.UpdateStatus(ctx, userID, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Msg("User approved")
	return user, nil
}

// FreezeUser blocks the user from starting tasks or withdrawing. Their
// wallet is left untouched.
func (s *AdminService) FreezeUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.UpdateStatus(ctx, userID, model.StatusFrozen)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Msg("User frozen")
	return user, nil
}

// ResetUserPosition puts one user back at the first task without
// touching their wallet or lifetime completion count.
func (s *AdminService) ResetUserPosition(ctx context.Context, userID int64) (*model.User, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	user, err := s.userRepo.ResetPosition(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Msg("User position reset")
	return user, nil
}

// UpsertPremiumTask configures a premium task at the given position,
// replacing any active config for the same slot.
func (s *AdminService) UpsertPremiumTask(ctx context.Context, setNumber, taskNumber int, penalty, additionalPending decimal.Decimal) (*model.PremiumTaskConfig, error) {
	if penalty.IsNegative() || additionalPending.IsNegative() {
		return nil, ErrInvalidAmount
	}

	cfg, err := s.premiumRepo.Upsert(ctx, setNumber, taskNumber, penalty, additionalPending)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int("set", setNumber).
		Int("task", taskNumber).
		Str("penalty", penalty.String()).
		Str("additional_pending", additionalPending.String()).
		Msg("Premium task configured")
	return cfg, nil
}

// DeactivatePremiumTask retires a premium config. The task reverts to a
// normal reward task.
func (s *AdminService) DeactivatePremiumTask(ctx context.Context, id int64) error {
	if err := s.premiumRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("config_id", id).Msg("Premium task deactivated")
	return nil
}

// ListPremiumTasks returns every active premium config.
func (s *AdminService) ListPremiumTasks(ctx context.Context) ([]model.PremiumTaskConfig, error) {
	return s.premiumRepo.GetActive(ctx)
}

// ReleasePending moves a user's escrowed pending amount back to their
// spendable balance. Returns the released amount.
func (s *AdminService) ReleasePending(ctx context.Context, userID int64) (decimal.Decimal, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	now := time.Now().UTC()
	next, released := s.ledger.ReleasePending(*wallet, now)
	if released.IsZero() {
		return decimal.Zero, nil
	}

	if err := s.walletRepo.Save(ctx, &next); err != nil {
		return decimal.Zero, err
	}

	desc := "Pending amount released"
	if _, err := s.txRepo.Create(ctx, userID, released, model.TxTypePendingRelease, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to record pending release transaction")
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("released", released.String()).
		Msg("Pending released")
	return released, nil
}

// AdjustBalance applies a manual correction to a user's balance. The
// delta may be negative.
func (s *AdminService) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal, reason string) (*model.Wallet, error) {
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := s.ledger.Adjust(*wallet, delta, time.Now().UTC())
	if err := s.walletRepo.Save(ctx, &next); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Manual adjustment: %s", reason)
	if _, err := s.txRepo.Create(ctx, userID, delta, model.TxTypeAdminAdjust, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to record adjustment transaction")
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("delta", delta.String()).
		Str("reason", reason).
		Msg("Balance adjusted")
	return &next, nil
}

// ResetAllWallets opens a new earning cycle: every wallet goes back to
// zero with a fresh trial bonus and every user returns to the first
// task. Lifetime accumulators survive. Errors on individual users are
// logged and skipped so one bad row cannot wedge the whole reset.
func (s *AdminService) ResetAllWallets(ctx context.Context) (int, error) {
	ids, err := s.userRepo.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	reset := 0
	for _, id := range ids {
		if err := s.resetOne(ctx, id, now); err != nil {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Failed to reset wallet")
			continue
		}
		reset++
	}

	s.logger.Info().
		Int("reset", reset).
		Int("total", len(ids)).
		Msg("Bulk wallet reset finished")
	return reset, nil
}

func (s *AdminService) resetOne(ctx context.Context, userID int64, now time.Time) error {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	next := s.ledger.ResetForNewCycle(*wallet, now)
	if err := s.walletRepo.Save(ctx, &next); err != nil {
		return err
	}
	if _, err := s.userRepo.ResetPosition(ctx, userID); err != nil {
		return fmt.Errorf("wallet reset but position reset failed: %w", err)
	}
	return nil
}
