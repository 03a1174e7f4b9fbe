package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"one-travel-working/internal/repository"
	"one-travel-working/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Register creates a new account. The user starts in pending status and
// cannot work tasks until an admin approves them.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, wallet, err := h.accounts.Register(r.Context(), req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"wallet": wallet,
	})
}

// GetSummary returns the authenticated user's account view.
func (h *AccountHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	summary, err := h.accounts.GetSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get summary: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetHistory returns the authenticated user's recent transactions.
func (h *AccountHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	limit := queryLimit(r, 20, 100)
	transactions, err := h.accounts.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get history: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": transactions,
		"limit": limit,
	})
}
