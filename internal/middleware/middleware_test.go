package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pliu/hush/internal/auth"
	"github.com/pliu/hush/internal/models"
)

type fakeRooms map[string][]string

func (f fakeRooms) Member(_ context.Context, roomID, token string) (*models.Room, error) {
	members, ok := f[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	room := &models.Room{ID: roomID, Kind: models.PairRoom{}, Connected: members}
	if !room.IsMember(token) {
		return nil, models.ErrNotMember
	}
	return room, nil
}

func TestRoomAuth(t *testing.T) {
	rooms := fakeRooms{"r1": {"tok-1"}}

	// Mock next handler
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoomID(r) != "r1" || Token(r) != "tok-1" {
			t.Errorf("context = %q/%q", RoomID(r), Token(r))
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		query          string
		cookie         *http.Cookie
		expectedStatus int
	}{
		{
			name:           "Valid Member",
			query:          "?roomId=r1",
			cookie:         auth.MembershipCookie("r1", "tok-1", false),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing Room Param",
			query:          "",
			cookie:         auth.MembershipCookie("r1", "tok-1", false),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Cookie",
			query:          "?roomId=r1",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Signature",
			query:          "?roomId=r1",
			cookie:         &http.Cookie{Name: auth.CookieName, Value: "r1|tok-1|invalid_signature"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Cookie For Other Room",
			query:          "?roomId=r1",
			cookie:         auth.MembershipCookie("r2", "tok-1", false),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Not A Member",
			query:          "?roomId=r1",
			cookie:         auth.MembershipCookie("r1", "tok-9", false),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Room Gone",
			query:          "?roomId=gone",
			cookie:         auth.MembershipCookie("gone", "tok-1", false),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tt.query, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rr := httptest.NewRecorder()

			RoomAuth(rooms)(nextHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	// Mock next handler that returns 404
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	LoggingMiddleware(nextHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v",
			rr.Code, http.StatusNotFound)
	}
}

// MockHijacker implements http.Hijacker for testing
type MockHijacker struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (m *MockHijacker) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	m.hijacked = true
	return nil, nil, nil
}

func TestLoggingMiddleware_Hijack(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			t.Error("ResponseWriter does not implement http.Hijacker")
			return
		}
		if _, _, err := hijacker.Hijack(); err != nil {
			t.Errorf("Hijack failed: %v", err)
		}
	})

	req := httptest.NewRequest("GET", "/ws", nil)
	mockWriter := &MockHijacker{ResponseRecorder: httptest.NewRecorder()}

	LoggingMiddleware(nextHandler).ServeHTTP(mockWriter, req)

	if !mockWriter.hijacked {
		t.Error("expected the underlying writer to be hijacked")
	}
}
