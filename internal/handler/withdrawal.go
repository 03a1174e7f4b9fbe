package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"one-travel-working/internal/repository"
	"one-travel-working/internal/service"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Request opens a withdrawal request. The amount is reserved from the
// balance immediately.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	request, err := h.withdrawals.Request(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, service.ErrTooManyConflicts):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeGateError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// Cancel voids one of the user's own pending requests and restores the
// reserved amount.
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	requestID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := h.withdrawals.Cancel(r.Context(), userID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWithdrawalNotFound):
			writeError(w, http.StatusNotFound, "withdrawal request not found")
		case errors.Is(err, service.ErrNotRequestOwner):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, repository.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// GetHistory lists the user's recent withdrawal requests.
func (h *WithdrawalHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	limit := queryLimit(r, 20, 100)
	requests, err := h.withdrawals.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get withdrawals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": requests,
		"limit": limit,
	})
}
