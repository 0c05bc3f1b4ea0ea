package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/room"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrPasscodeRequired):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotMember):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrPasscodeMissing), errors.Is(err, room.ErrPasscodeTooLong),
		errors.Is(err, messages.ErrInvalidMessage), errors.Is(err, models.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"error": ...}. Internal failures are logged and
// never echoed.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
