// Package server assembles the HTTP router and serves the API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"one-travel-working/internal/config"
	"one-travel-working/internal/handler"
	"one-travel-working/internal/pkg/db"
)

// Handlers groups the API handlers the server routes to.
type Handlers struct {
	Account    *handler.AccountHandler
	Booking    *handler.BookingHandler
	Withdrawal *handler.WithdrawalHandler
	Admin      *handler.AdminHandler
}

type Server struct {
	router *mux.Router
	cors   *cors.Cors
	pool   *db.Pool
	cfg    *config.Config
	logger zerolog.Logger
	http   *http.Server
}

func New(cfg *config.Config, pool *db.Pool, handlers Handlers, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With", "X-User-ID"},
		AllowCredentials: true,
	})

	s := &Server{
		router: router,
		cors:   corsHandler,
		pool:   pool,
		cfg:    cfg,
		logger: logger,
	}

	s.routes(handlers, registry)
	return s
}

func (s *Server) routes(h Handlers, registry *prometheus.Registry) {
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requestLogging)
	api.Use(mux.CORSMethodMiddleware(api))

	api.HandleFunc("/register", h.Account.Register).Methods("POST")
	api.HandleFunc("/account/summary", h.Account.GetSummary).Methods("GET")
	api.HandleFunc("/account/history", h.Account.GetHistory).Methods("GET")

	api.HandleFunc("/tasks/status", h.Booking.GetStatus).Methods("GET")
	api.HandleFunc("/tasks/complete", h.Booking.CompleteTask).Methods("POST")

	api.HandleFunc("/withdrawals", h.Withdrawal.Request).Methods("POST")
	api.HandleFunc("/withdrawals", h.Withdrawal.GetHistory).Methods("GET")
	api.HandleFunc("/withdrawals/{id}/cancel", h.Withdrawal.Cancel).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.Admin.RequireAdmin)

	admin.HandleFunc("/users/{id}/approve", h.Admin.ApproveUser).Methods("POST")
	admin.HandleFunc("/users/{id}/freeze", h.Admin.FreezeUser).Methods("POST")
	admin.HandleFunc("/users/{id}/reset-position", h.Admin.ResetUserPosition).Methods("POST")
	admin.HandleFunc("/users/{id}/release-pending", h.Admin.ReleasePending).Methods("POST")
	admin.HandleFunc("/users/{id}/adjust", h.Admin.AdjustBalance).Methods("POST")

	admin.HandleFunc("/premium-tasks", h.Admin.UpsertPremiumTask).Methods("POST")
	admin.HandleFunc("/premium-tasks", h.Admin.ListPremiumTasks).Methods("GET")
	admin.HandleFunc("/premium-tasks/{id}", h.Admin.DeactivatePremiumTask).Methods("DELETE")

	admin.HandleFunc("/withdrawals/pending", h.Admin.ListPendingWithdrawals).Methods("GET")
	admin.HandleFunc("/withdrawals/{id}/approve", h.Admin.ApproveWithdrawal).Methods("POST")
	admin.HandleFunc("/withdrawals/{id}/cancel", h.Admin.CancelWithdrawal).Methods("POST")

	admin.HandleFunc("/wallets/reset", h.Admin.ResetAllWallets).Methods("POST")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.pool.HealthCheck(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestLogging logs one line per API request with latency and status.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.cors.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
