// Package repository tests use testcontainers-go to spin up a
// PostgreSQL container. They skip when Docker is unavailable.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"one-travel-working/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			current_set INT NOT NULL DEFAULT 1,
			current_task INT NOT NULL DEFAULT 1,
			total_tasks_completed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			balance NUMERIC(18,2) NOT NULL DEFAULT 0,
			pending_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			trial_bonus NUMERIC(18,2) NOT NULL DEFAULT 0,
			today_points NUMERIC(18,2) NOT NULL DEFAULT 0,
			total_earnings NUMERIC(18,2) NOT NULL DEFAULT 0,
			total_withdrawn NUMERIC(18,2) NOT NULL DEFAULT 0,
			last_reset_date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_DATE,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(18,2) NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS premium_task_configs (
			id BIGSERIAL PRIMARY KEY,
			set_number INT NOT NULL,
			task_number INT NOT NULL,
			penalty_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			additional_pending NUMERIC(18,2) NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(18,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		)
	`)
	return err
}

// createApprovedUser is a helper that creates a user with a wallet
// seeded with the standard trial bonus.
func createApprovedUser(t *testing.T, pool *pgxpool.Pool, username string) (*model.User, *model.Wallet) {
	t.Helper()
	ctx := context.Background()

	userRepo := NewUserRepository(pool)
	walletRepo := NewWalletRepository(pool)

	user, err := userRepo.Create(ctx, username)
	require.NoError(t, err)

	user, err = userRepo.UpdateStatus(ctx, user.ID, model.StatusApproved)
	require.NoError(t, err)

	wallet, err := walletRepo.CreateForUser(ctx, user.ID, decimal.NewFromInt(10000))
	require.NoError(t, err)

	return user, wallet
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.StatusPending, user.Status)
	assert.Equal(t, 1, user.CurrentSet)
	assert.Equal(t, 1, user.CurrentTask)
	assert.Equal(t, 0, user.TotalTasksCompleted)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, "alice")
	require.NoError(t, err)

	user, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_UpdateStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, "alice")
	require.NoError(t, err)

	user, err := repo.UpdateStatus(ctx, created.ID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, user.Status)

	user, err = repo.UpdateStatus(ctx, created.ID, model.StatusFrozen)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFrozen, user.Status)

	_, err = repo.UpdateStatus(ctx, 99999, model.StatusApproved)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ResetPosition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, wallet := createApprovedUser(t, pool, "alice")

	// Advance the user mid-curriculum.
	user.CurrentSet = 2
	user.CurrentTask = 15
	user.TotalTasksCompleted = 44
	require.NoError(t, walletRepo.SaveWithPosition(ctx, wallet, user))

	reset, err := userRepo.ResetPosition(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reset.CurrentSet)
	assert.Equal(t, 1, reset.CurrentTask)
	// The lifetime counter must survive a position reset.
	assert.Equal(t, 44, reset.TotalTasksCompleted)
}

func TestUserRepository_ListIDsAndExists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	u1, _ := repo.Create(ctx, "alice")
	u2, _ := repo.Create(ctx, "bob")

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{u1.ID, u2.ID}, ids)

	exists, err = repo.Exists(ctx, u1.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

// ============================================================================
// WalletRepository Tests
// ============================================================================

func TestWalletRepository_CreateForUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, err := userRepo.Create(ctx, "alice")
	require.NoError(t, err)

	wallet, err := walletRepo.CreateForUser(ctx, user.ID, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, user.ID, wallet.UserID)
	assert.True(t, wallet.Balance.IsZero())
	assert.True(t, wallet.PendingAmount.IsZero())
	assert.True(t, wallet.TrialBonus.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, int64(1), wallet.Version)

	// One wallet per user.
	_, err = walletRepo.CreateForUser(ctx, user.ID, decimal.NewFromInt(10000))
	assert.Error(t, err)
}

func TestWalletRepository_GetByUserID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, created := createApprovedUser(t, pool, "alice")

	wallet, err := walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, wallet.ID)

	_, err = walletRepo.GetByUserID(ctx, 99999)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletRepository_SaveWithPosition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, wallet := createApprovedUser(t, pool, "alice")

	wallet.Balance = decimal.NewFromFloat(38.72)
	wallet.TodayPoints = decimal.NewFromFloat(38.72)
	wallet.TotalEarnings = decimal.NewFromFloat(38.72)
	user.CurrentTask = 2
	user.TotalTasksCompleted = 1

	require.NoError(t, walletRepo.SaveWithPosition(ctx, wallet, user))
	assert.Equal(t, int64(2), wallet.Version)

	stored, err := walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromFloat(38.72)))
	assert.Equal(t, int64(2), stored.Version)

	storedUser, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, storedUser.CurrentTask)
	assert.Equal(t, 1, storedUser.TotalTasksCompleted)
}

func TestWalletRepository_VersionConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, wallet := createApprovedUser(t, pool, "alice")

	// Two readers load the same version.
	stale, err := walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)

	// First writer wins.
	wallet.Balance = decimal.NewFromInt(100)
	require.NoError(t, walletRepo.Save(ctx, wallet))

	// Second writer must observe the conflict, and the row must keep
	// the first writer's state.
	stale.Balance = decimal.NewFromInt(999)
	err = walletRepo.Save(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(100)))

	err = walletRepo.SaveWithPosition(ctx, stale, user)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestWalletRepository_NegativeBalancePersists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	walletRepo := NewWalletRepository(pool)
	ctx := context.Background()

	user, wallet := createApprovedUser(t, pool, "alice")

	wallet.Balance = decimal.NewFromFloat(-4862.00)
	wallet.PendingAmount = decimal.NewFromFloat(2100.00)
	require.NoError(t, walletRepo.Save(ctx, wallet))

	stored, err := walletRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromFloat(-4862.00)))
	assert.True(t, stored.PendingAmount.Equal(decimal.NewFromFloat(2100.00)))
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	user, _ := createApprovedUser(t, pool, "alice")

	desc := "Booking task 1 of set 1"
	tx, err := txRepo.Create(ctx, user.ID, decimal.NewFromFloat(38.72), model.TxTypeTaskReward, &desc)
	require.NoError(t, err)
	assert.Equal(t, user.ID, tx.UserID)
	assert.True(t, tx.Amount.Equal(decimal.NewFromFloat(38.72)))
	assert.Equal(t, model.TxTypeTaskReward, tx.Type)
	require.NotNil(t, tx.Description)
	assert.Equal(t, desc, *tx.Description)
}

func TestTransactionRepository_GetByUserID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	user, _ := createApprovedUser(t, pool, "alice")

	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(36.10), model.TxTypeTaskReward, nil)
	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(-5000), model.TxTypePremiumPenalty, nil)
	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(2100), model.TxTypePremiumSweep, nil)

	txs, err := txRepo.GetByUserID(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	txs, err = txRepo.GetByUserID(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestTransactionRepository_GetUserDailyEarned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	user, _ := createApprovedUser(t, pool, "alice")
	other, _ := createApprovedUser(t, pool, "bob")

	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(36.10), model.TxTypeTaskReward, nil)
	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(39.25), model.TxTypeTaskReward, nil)
	// Non-reward rows and other users are excluded from the sum.
	_, _ = txRepo.Create(ctx, user.ID, decimal.NewFromFloat(-5000), model.TxTypePremiumPenalty, nil)
	_, _ = txRepo.Create(ctx, other.ID, decimal.NewFromFloat(40.00), model.TxTypeTaskReward, nil)

	earned, err := txRepo.GetUserDailyEarned(ctx, user.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, earned.Equal(decimal.NewFromFloat(75.35)), "got %s", earned)

	// A user with no rewards today sums to zero.
	none, _ := createApprovedUser(t, pool, "carol")
	earned, err = txRepo.GetUserDailyEarned(ctx, none.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, earned.IsZero())
}

// ============================================================================
// PremiumConfigRepository Tests
// ============================================================================

func TestPremiumConfigRepository_UpsertAndGetActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPremiumConfigRepository(pool)
	ctx := context.Background()

	cfg, err := repo.Upsert(ctx, 2, 15, decimal.NewFromInt(5000), decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.SetNumber)
	assert.Equal(t, 15, cfg.TaskNumber)
	assert.True(t, cfg.Active)

	configs, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	// Upserting the same position replaces the old config instead of
	// stacking a duplicate.
	updated, err := repo.Upsert(ctx, 2, 15, decimal.NewFromInt(8000), decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.NotEqual(t, cfg.ID, updated.ID)

	configs, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.True(t, configs[0].PenaltyAmount.Equal(decimal.NewFromInt(8000)))

	// A different position coexists.
	_, err = repo.Upsert(ctx, 3, 1, decimal.NewFromInt(1000), decimal.Zero)
	require.NoError(t, err)

	configs, err = repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 2)
}

func TestPremiumConfigRepository_Deactivate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPremiumConfigRepository(pool)
	ctx := context.Background()

	cfg, err := repo.Upsert(ctx, 1, 5, decimal.NewFromInt(500), decimal.Zero)
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(ctx, cfg.ID))

	configs, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, configs)

	err = repo.Deactivate(ctx, 99999)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

// ============================================================================
// WithdrawalRepository Tests
// ============================================================================

func TestWithdrawalRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWithdrawalRepository(pool)
	ctx := context.Background()

	user, _ := createApprovedUser(t, pool, "alice")

	req, err := repo.Create(ctx, user.ID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalPending, req.Status)
	assert.Nil(t, req.ProcessedAt)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(500)))

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

func TestWithdrawalRepository_ExactlyOnceTransitions(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWithdrawalRepository(pool)
	ctx := context.Background()

	user, _ := createApprovedUser(t, pool, "alice")

	req, err := repo.Create(ctx, user.ID, decimal.NewFromInt(500))
	require.NoError(t, err)

	cancelled, err := repo.MarkCancelled(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.ProcessedAt)

	// A processed request cannot transition again, in either direction.
	_, err = repo.MarkCancelled(ctx, req.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = repo.MarkApproved(ctx, req.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	req2, err := repo.Create(ctx, user.ID, decimal.NewFromInt(200))
	require.NoError(t, err)

	approved, err := repo.MarkApproved(ctx, req2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalApproved, approved.Status)

	_, err = repo.MarkApproved(ctx, req2.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestWithdrawalRepository_Listing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWithdrawalRepository(pool)
	ctx := context.Background()

	alice, _ := createApprovedUser(t, pool, "alice")
	bob, _ := createApprovedUser(t, pool, "bob")

	r1, _ := repo.Create(ctx, alice.ID, decimal.NewFromInt(100))
	_, _ = repo.Create(ctx, alice.ID, decimal.NewFromInt(200))
	_, _ = repo.Create(ctx, bob.ID, decimal.NewFromInt(300))

	mine, err := repo.ListByUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	_, err = repo.MarkApproved(ctx, r1.ID)
	require.NoError(t, err)

	pending, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
