// Package main is the entry point for the One Travel Working API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"one-travel-working/internal/config"
	"one-travel-working/internal/curriculum"
	"one-travel-working/internal/handler"
	"one-travel-working/internal/ledger"
	"one-travel-working/internal/levels"
	"one-travel-working/internal/metrics"
	"one-travel-working/internal/pkg/db"
	"one-travel-working/internal/pkg/lock"
	"one-travel-working/internal/points"
	"one-travel-working/internal/premium"
	"one-travel-working/internal/repository"
	"one-travel-working/internal/server"
	"one-travel-working/internal/service"
	"one-travel-working/internal/withdraw"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	walletRepo := repository.NewWalletRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	premiumRepo := repository.NewPremiumConfigRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)

	// Initialize domain components
	generator, err := points.New(&points.Config{Min: cfg.Points.Min, Max: cfg.Points.Max}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid points configuration")
	}

	curr := curriculum.New(cfg.Curriculum.Sets, cfg.Curriculum.TasksPerSet)

	walletLedger := ledger.New(ledger.Config{
		InitialTrialBonus: decimal.NewFromFloat(cfg.Wallet.TrialBonus),
		TasksPerSet:       cfg.Curriculum.TasksPerSet,
	})

	levelCalc, err := levels.New(bandsFromConfig(cfg.Levels))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid levels configuration")
	}

	gate := withdraw.NewGate(curr)
	rules := withdraw.AdminRules{
		AllowWithoutCompletion: cfg.Withdrawal.AllowWithoutCompletion,
		MinBalance:             decimal.NewFromFloat(cfg.Withdrawal.MinBalance),
	}

	engine := premium.NewEngine(log.Logger)
	userLock := lock.NewUserLock()

	// Metrics registry with process and Go runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize services
	accountService := service.NewAccountService(service.AccountDeps{
		UserRepo:   userRepo,
		WalletRepo: walletRepo,
		TxRepo:     txRepo,
		Ledger:     walletLedger,
		Levels:     levelCalc,
		Gate:       gate,
		Curriculum: curr,
		Locks:      userLock,
		Logger:     log.Logger,
	})

	bookingService := service.NewBookingService(service.BookingDeps{
		UserRepo:    userRepo,
		WalletRepo:  walletRepo,
		TxRepo:      txRepo,
		PremiumRepo: premiumRepo,
		Generator:   generator,
		Ledger:      walletLedger,
		Curriculum:  curr,
		Gate:        gate,
		Engine:      engine,
		Locks:       userLock,
		Metrics:     m,
		Logger:      log.Logger,
	})

	withdrawalService := service.NewWithdrawalService(service.WithdrawalDeps{
		UserRepo:       userRepo,
		WalletRepo:     walletRepo,
		WithdrawalRepo: withdrawalRepo,
		TxRepo:         txRepo,
		Ledger:         walletLedger,
		Gate:           gate,
		Rules:          rules,
		Locks:          userLock,
		Metrics:        m,
		Logger:         log.Logger,
	})

	adminService := service.NewAdminService(service.AdminDeps{
		UserRepo:    userRepo,
		WalletRepo:  walletRepo,
		TxRepo:      txRepo,
		PremiumRepo: premiumRepo,
		Ledger:      walletLedger,
		Locks:       userLock,
		Logger:      log.Logger,
	})

	// Initialize HTTP server
	srv := server.New(cfg, dbPool, server.Handlers{
		Account:    handler.NewAccountHandler(accountService),
		Booking:    handler.NewBookingHandler(bookingService),
		Withdrawal: handler.NewWithdrawalHandler(withdrawalService),
		Admin:      handler.NewAdminHandler(adminService, withdrawalService, cfg),
	}, registry, log.Logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		log.Fatal().Err(err).Msg("Server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
	log.Info().Msg("Server stopped gracefully")
}

// bandsFromConfig converts the parallel threshold/bonus slices into the
// level band table. Config validation already checked the shapes.
func bandsFromConfig(cfg config.LevelsConfig) []levels.Band {
	names := []string{"Level 1", "Level 2", "Level 3", "Agent Level"}
	bands := make([]levels.Band, len(cfg.Thresholds))
	for i := range cfg.Thresholds {
		name := ""
		if i < len(names) {
			name = names[i]
		} else {
			name = names[len(names)-1]
		}
		bands[i] = levels.Band{
			Name:      name,
			Threshold: cfg.Thresholds[i],
			Bonus:     decimal.NewFromFloat(cfg.Bonuses[i]),
		}
	}
	return bands
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
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
		);
		CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create wallets table
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
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: wallets table created")

	// Migration 3: Create transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(18,2) NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: transactions table created")

	// Migration 4: Create premium task configs table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS premium_task_configs (
			id BIGSERIAL PRIMARY KEY,
			set_number INT NOT NULL,
			task_number INT NOT NULL,
			penalty_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			additional_pending NUMERIC(18,2) NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_premium_position ON premium_task_configs(set_number, task_number) WHERE active;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: premium_task_configs table created")

	// Migration 5: Create withdrawal requests table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(18,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_user_time ON withdrawal_requests(user_id, requested_at DESC);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawal_requests(status, requested_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: withdrawal_requests table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
