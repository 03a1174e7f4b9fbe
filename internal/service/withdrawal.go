package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/ledger"
	"one-travel-working/internal/metrics"
	"one-travel-working/internal/model"
	"one-travel-working/internal/pkg/lock"
	"one-travel-working/internal/repository"
	"one-travel-working/internal/withdraw"
)

// WithdrawalService handles the withdrawal lifecycle. The balance is
// reserved at request time, so cancellation compensates by putting the
// amount back, and approval is a bookkeeping transition only.
type WithdrawalService struct {
	userRepo       *repository.UserRepository
	walletRepo     *repository.WalletRepository
	withdrawalRepo *repository.WithdrawalRepository
	txRepo         *repository.TransactionRepository
	ledger         *ledger.Ledger
	gate           *withdraw.Gate
	rules          withdraw.AdminRules
	locks          *lock.UserLock
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// WithdrawalDeps bundles the collaborators of a WithdrawalService.
type WithdrawalDeps struct {
	UserRepo       *repository.UserRepository
	WalletRepo     *repository.WalletRepository
	WithdrawalRepo *repository.WithdrawalRepository
	TxRepo         *repository.TransactionRepository
	Ledger         *ledger.Ledger
	Gate           *withdraw.Gate
	Rules          withdraw.AdminRules
	Locks          *lock.UserLock
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(deps WithdrawalDeps) *WithdrawalService {
	return &WithdrawalService{
		userRepo:       deps.UserRepo,
		walletRepo:     deps.WalletRepo,
		withdrawalRepo: deps.WithdrawalRepo,
		txRepo:         deps.TxRepo,
		ledger:         deps.Ledger,
		gate:           deps.Gate,
		rules:          deps.Rules,
		locks:          deps.Locks,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
	}
}

// saveWalletRetrying reloads and reapplies a wallet transition when the
// optimistic version check fails. The transition must be a pure function
// of the freshly loaded wallet.
func (s *WithdrawalService) saveWalletRetrying(ctx context.Context, userID int64, apply func(model.Wallet) (model.Wallet, error)) (*model.Wallet, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		wallet, err := s.walletRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		next, err := apply(*wallet)
		if err != nil {
			return nil, err
		}
		if err := s.walletRepo.Save(ctx, &next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				s.metrics.VersionConflicts.Inc()
				continue
			}
			return nil, err
		}
		return &next, nil
	}
	return nil, ErrTooManyConflicts
}

// Request reserves the amount from the user's balance and opens a
// pending withdrawal request for admin review.
func (s *WithdrawalService) Request(ctx context.Context, userID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	wallet, err := s.saveWalletRetrying(ctx, userID, func(w model.Wallet) (model.Wallet, error) {
		if ok, reason := s.gate.CanWithdraw(&w, user.TotalTasksCompleted, amount, s.rules); !ok {
			s.metrics.Withdrawals.WithLabelValues("rejected").Inc()
			return w, &GateError{Reason: reason}
		}
		return s.ledger.ApplyWithdrawal(w, amount, now)
	})
	if err != nil {
		return nil, err
	}

	req, err := s.withdrawalRepo.Create(ctx, userID, amount)
	if err != nil {
		// The balance was already reserved; put it back so a storage
		// failure never strands funds.
		if _, compErr := s.saveWalletRetrying(ctx, userID, func(w model.Wallet) (model.Wallet, error) {
			return s.ledger.CancelWithdrawal(w, amount, now)
		}); compErr != nil {
			s.logger.Error().Err(compErr).
				Int64("user_id", userID).
				Str("amount", amount.String()).
				Msg("Failed to restore balance after withdrawal create failure")
		}
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	desc := fmt.Sprintf("Withdrawal request #%d", req.ID)
	if _, err := s.txRepo.Create(ctx, userID, amount.Neg(), model.TxTypeWithdrawal, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to record withdrawal transaction")
	}

	s.metrics.Withdrawals.WithLabelValues("requested").Inc()
	s.logger.Info().
		Int64("user_id", userID).
		Int64("request_id", req.ID).
		Str("amount", amount.String()).
		Str("balance", wallet.Balance.String()).
		Msg("Withdrawal requested")

	return req, nil
}

// Cancel voids a pending request owned by the user and restores the
// reserved amount to their balance. The status transition happens
// first and exactly once, so a crash after it can only leave the user
// owed money, never paid twice.
func (s *WithdrawalService) Cancel(ctx context.Context, userID, requestID int64) (*model.WithdrawalRequest, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	req, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrNotRequestOwner
	}

	req, err = s.withdrawalRepo.MarkCancelled(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := s.saveWalletRetrying(ctx, userID, func(w model.Wallet) (model.Wallet, error) {
		return s.ledger.CancelWithdrawal(w, req.Amount, now)
	}); err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", userID).
			Int64("request_id", requestID).
			Msg("Failed to restore balance for cancelled withdrawal")
		return nil, err
	}

	desc := fmt.Sprintf("Cancelled withdrawal request #%d", req.ID)
	if _, err := s.txRepo.Create(ctx, userID, req.Amount, model.TxTypeWithdrawalCancel, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to record cancellation transaction")
	}

	s.metrics.Withdrawals.WithLabelValues("cancelled").Inc()
	s.logger.Info().
		Int64("user_id", userID).
		Int64("request_id", requestID).
		Msg("Withdrawal cancelled")

	return req, nil
}

// AdminCancel voids any user's pending request on their behalf and
// restores the reserved amount.
func (s *WithdrawalService) AdminCancel(ctx context.Context, requestID int64) (*model.WithdrawalRequest, error) {
	req, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx, req.UserID, requestID)
}

// Approve marks a pending request as paid out. The balance was already
// deducted at request time.
func (s *WithdrawalService) Approve(ctx context.Context, requestID int64) (*model.WithdrawalRequest, error) {
	req, err := s.withdrawalRepo.MarkApproved(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.metrics.Withdrawals.WithLabelValues("approved").Inc()
	s.logger.Info().
		Int64("user_id", req.UserID).
		Int64("request_id", requestID).
		Str("amount", req.Amount.String()).
		Msg("Withdrawal approved")

	return req, nil
}

// History returns the user's most recent withdrawal requests.
func (s *WithdrawalService) History(ctx context.Context, userID int64, limit int) ([]*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListByUser(ctx, userID, limit)
}

// Pending returns open requests awaiting admin review.
func (s *WithdrawalService) Pending(ctx context.Context, limit int) ([]*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListPending(ctx, limit)
}
