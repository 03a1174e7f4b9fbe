package handler

import (
	"errors"
	"net/http"

	"one-travel-working/internal/repository"
	"one-travel-working/internal/service"
)

type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// GetStatus reports where the user stands in the curriculum and whether
// they may start the next task.
func (h *BookingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	status, err := h.bookings.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get status: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// CompleteTask completes the task at the user's current position.
func (h *BookingHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return
	}

	event, err := h.bookings.CompleteTask(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, service.ErrTooManyConflicts):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeGateError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, event)
}
