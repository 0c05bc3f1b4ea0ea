package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/pliu/hush/internal/auth"
	"github.com/pliu/hush/internal/middleware"
	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/room"
)

type RoomHandler struct {
	Rooms         *room.Service
	SecureCookies bool
}

type CreateRoomResponse struct {
	RoomID string      `json:"roomId"`
	Mode   models.Mode `json:"mode"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req room.CreateRequest
	// An empty body asks for a pair room.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rm, err := h.Rooms.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateRoomResponse{RoomID: rm.ID, Mode: rm.Mode()})
}

type JoinResponse struct {
	RoomID   string `json:"roomId"`
	Existing bool   `json:"existing"`
	Count    int    `json:"count"`
}

// Join is the gate in front of a room path. Admitted callers get a membership
// cookie; rejected ones are sent back to the lobby with a reason code.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	token := auth.MembershipToken(r, roomID)
	passcode := r.URL.Query().Get("passcode")

	adm, err := h.Rooms.Join(r.Context(), roomID, token, passcode)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeError(w, err)
			return
		}
		q := url.Values{}
		q.Set("error", models.Reason(err))
		if errors.Is(err, models.ErrPasscodeRequired) {
			q.Set("room", roomID)
		}
		http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
		return
	}

	if !adm.Existing {
		http.SetCookie(w, auth.MembershipCookie(roomID, adm.Token, h.SecureCookies))
	}
	writeJSON(w, http.StatusOK, JoinResponse{RoomID: roomID, Existing: adm.Existing, Count: adm.Count})
}

func (h *RoomHandler) Meta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.Rooms.Meta(r.Context(), middleware.RoomID(r), middleware.Token(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *RoomHandler) Participants(w http.ResponseWriter, r *http.Request) {
	n, err := h.Rooms.ParticipantCount(r.Context(), middleware.RoomID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ParticipantCount{Count: n})
}

func (h *RoomHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.Rooms.Destroy(r.Context(), middleware.RoomID(r), middleware.Token(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Lobby is where rejected joins land. It only reflects the reason code.
func Lobby(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]string{
		"error":     q.Get("error"),
		"room":      q.Get("room"),
		"destroyed": q.Get("destroyed"),
	})
}
