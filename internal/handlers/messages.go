package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/middleware"
	"github.com/pliu/hush/internal/models"
)

type MessageHandler struct {
	Log *messages.Log
}

type ListMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var p messages.Post
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.Log.Append(r.Context(), middleware.RoomID(r), middleware.Token(r), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Log.List(r.Context(), middleware.RoomID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, ListMessagesResponse{Messages: msgs})
}
