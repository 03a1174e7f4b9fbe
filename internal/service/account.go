package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/curriculum"
	"one-travel-working/internal/ledger"
	"one-travel-working/internal/levels"
	"one-travel-working/internal/model"
	"one-travel-working/internal/pkg/lock"
	"one-travel-working/internal/repository"
	"one-travel-working/internal/withdraw"
)

// AccountService handles registration and the read-side views of a
// user's account: wallet summary, level progression, and history.
type AccountService struct {
	userRepo   *repository.UserRepository
	walletRepo *repository.WalletRepository
	txRepo     *repository.TransactionRepository
	ledger     *ledger.Ledger
	levels     *levels.Calculator
	gate       *withdraw.Gate
	curriculum *curriculum.Curriculum
	locks      *lock.UserLock
	logger     zerolog.Logger
}

// AccountDeps bundles the collaborators of an AccountService.
type AccountDeps struct {
	UserRepo   *repository.UserRepository
	WalletRepo *repository.WalletRepository
	TxRepo     *repository.TransactionRepository
	Ledger     *ledger.Ledger
	Levels     *levels.Calculator
	Gate       *withdraw.Gate
	Curriculum *curriculum.Curriculum
	Locks      *lock.UserLock
	Logger     zerolog.Logger
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(deps AccountDeps) *AccountService {
	return &AccountService{
		userRepo:   deps.UserRepo,
		walletRepo: deps.WalletRepo,
		txRepo:     deps.TxRepo,
		ledger:     deps.Ledger,
		levels:     deps.Levels,
		gate:       deps.Gate,
		curriculum: deps.Curriculum,
		locks:      deps.Locks,
		logger:     deps.Logger,
	}
}

// Register creates a new user in pending status with a fresh wallet
// carrying the trial bonus. Registration does not grant task access;
// an admin must approve the user first.
func (s *AccountService) Register(ctx context.Context, username string) (*model.User, *model.Wallet, error) {
	user, err := s.userRepo.Create(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	wallet, err := s.walletRepo.CreateForUser(ctx, user.ID, s.ledger.InitialTrialBonus())
	if err != nil {
		return nil, nil, err
	}

	desc := "Trial bonus granted at registration"
	if _, err := s.txRepo.Create(ctx, user.ID, wallet.TrialBonus, model.TxTypeTrialGrant, &desc); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to record trial grant transaction")
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", username).
		Msg("User registered")
	return user, wallet, nil
}

// Summary is the aggregate account view served to the client.
type Summary struct {
	User        *model.User         `json:"user"`
	Wallet      *model.Wallet       `json:"wallet"`
	Available   decimal.Decimal     `json:"available_balance"`
	EarnedToday decimal.Decimal     `json:"earned_today"`
	Position    curriculum.Position `json:"position"`
	CanStart    bool                `json:"can_start_task"`
	StartReason withdraw.Reason     `json:"start_reason"`
	Progression levels.Progression  `json:"progression"`
}

// GetSummary assembles the account view. Reading the summary is what
// rolls the wallet over to a new day: the daily reset is applied lazily
// and persisted when the day changed.
func (s *AccountService) GetSummary(ctx context.Context, userID int64) (*Summary, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := s.ledger.ApplyDailyReset(*wallet, now)
	if !next.LastResetDate.Equal(wallet.LastResetDate) {
		if err := s.walletRepo.Save(ctx, &next); err != nil {
			return nil, err
		}
		wallet = &next
	}

	// The audited figure from the transaction log, not the wallet
	// counter. The two agree unless history rows were lost.
	earnedToday, err := s.txRepo.GetUserDailyEarned(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	canStart, reason := s.gate.CanStartTask(user, wallet)
	return &Summary{
		User:        user,
		Wallet:      wallet,
		Available:   withdraw.AvailableBalance(wallet),
		EarnedToday: earnedToday,
		Position:    curriculum.Position{Set: user.CurrentSet, Task: user.CurrentTask},
		CanStart:    canStart,
		StartReason: reason,
		Progression: s.levels.Progression(user.TotalTasksCompleted),
	}, nil
}

// History returns the user's most recent ledger transactions.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return s.txRepo.GetByUserID(ctx, userID, limit)
}
