package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/pliu/hush/internal/auth"
	"github.com/pliu/hush/internal/models"
)

type contextKey string

const (
	RoomIDKey contextKey = "room_id"
	TokenKey  contextKey = "member_token"
)

// MemberChecker resolves a membership token against a room.
type MemberChecker interface {
	Member(ctx context.Context, roomID, token string) (*models.Room, error)
}

// RoomAuth admits a request only if its cookie holds a membership token of the
// room named by the roomId query parameter.
func RoomAuth(rooms MemberChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roomID := r.URL.Query().Get("roomId")
			if roomID == "" {
				http.Error(w, "roomId required", http.StatusBadRequest)
				return
			}

			token := auth.MembershipToken(r, roomID)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if _, err := rooms.Member(r.Context(), roomID, token); err != nil {
				if errors.Is(err, models.ErrRoomNotFound) {
					http.Error(w, models.ErrRoomNotFound.Error(), http.StatusNotFound)
					return
				}
				if errors.Is(err, models.ErrNotMember) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), RoomIDKey, roomID)
			ctx = context.WithValue(ctx, TokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoomID and Token read what RoomAuth stored.
func RoomID(r *http.Request) string {
	v, _ := r.Context().Value(RoomIDKey).(string)
	return v
}

func Token(r *http.Request) string {
	v, _ := r.Context().Value(TokenKey).(string)
	return v
}
