// Package handler exposes the HTTP API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"one-travel-working/internal/service"
)

// userIDHeader carries the authenticated user's id, set by the edge
// proxy after session validation.
const userIDHeader = "X-User-ID"

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeGateError maps a gate rejection to 409 with the reason code so
// the client can show the specific lock, or falls through to 500.
func writeGateError(w http.ResponseWriter, err error) {
	if ge, ok := service.AsGateError(err); ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "operation blocked",
			"reason": string(ge.Reason),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// requestUserID extracts the authenticated user id from the request.
func requestUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathID parses a numeric path variable from the mux route.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryLimit reads a limit query param, clamped to [1, max].
func queryLimit(r *http.Request, def, max int) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > max {
		return def
	}
	return limit
}
