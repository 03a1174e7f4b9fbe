package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"one-travel-working/internal/config"
	"one-travel-working/internal/repository"
	"one-travel-working/internal/service"
)

// AdminHandler exposes back-office operations. Every route requires the
// caller to be in the configured admin list.
type AdminHandler struct {
	admin       *service.AdminService
	withdrawals *service.WithdrawalService
	cfg         *config.Config
}

func NewAdminHandler(admin *service.AdminService, withdrawals *service.WithdrawalService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{admin: admin, withdrawals: withdrawals, cfg: cfg}
}

// RequireAdmin rejects callers whose identity is not in the admin list.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := requestUserID(r)
		if !ok || !h.cfg.IsAdmin(callerID) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.admin.ApproveUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to approve user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) FreezeUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.admin.FreezeUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to freeze user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) ResetUserPosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.admin.ResetUserPosition(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset position: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) UpsertPremiumTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SetNumber         int             `json:"set_number"`
		TaskNumber        int             `json:"task_number"`
		Penalty           decimal.Decimal `json:"penalty"`
		AdditionalPending decimal.Decimal `json:"additional_pending"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SetNumber < 1 || req.TaskNumber < 1 {
		writeError(w, http.StatusBadRequest, "set_number and task_number must be positive")
		return
	}

	cfg, err := h.admin.UpsertPremiumTask(r.Context(), req.SetNumber, req.TaskNumber, req.Penalty, req.AdditionalPending)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to configure premium task: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

func (h *AdminHandler) DeactivatePremiumTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid config id")
		return
	}

	if err := h.admin.DeactivatePremiumTask(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "premium config not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to deactivate: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *AdminHandler) ListPremiumTasks(w http.ResponseWriter, r *http.Request) {
	configs, err := h.admin.ListPremiumTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list premium tasks: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": configs})
}

func (h *AdminHandler) ReleasePending(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	released, err := h.admin.ReleasePending(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to release pending: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"released": released})
}

func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Delta  decimal.Decimal `json:"delta"`
		Reason string          `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	wallet, err := h.admin.AdjustBalance(r.Context(), userID, req.Delta, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "wallet not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to adjust balance: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

func (h *AdminHandler) ResetAllWallets(w http.ResponseWriter, r *http.Request) {
	reset, err := h.admin.ResetAllWallets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset wallets: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": reset})
}

func (h *AdminHandler) ListPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 200)
	requests, err := h.withdrawals.Pending(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list withdrawals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": requests,
		"limit": limit,
	})
}

func (h *AdminHandler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := h.withdrawals.AdminCancel(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWithdrawalNotFound):
			writeError(w, http.StatusNotFound, "withdrawal request not found")
		case errors.Is(err, repository.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, request)
}

func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := h.withdrawals.Approve(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWithdrawalNotFound):
			writeError(w, http.StatusNotFound, "withdrawal request not found")
		case errors.Is(err, repository.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to approve: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, request)
}
