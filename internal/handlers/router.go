package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/middleware"
	"github.com/pliu/hush/internal/room"
	"github.com/pliu/hush/internal/ws"
)

type Deps struct {
	Rooms         *room.Service
	Log           *messages.Log
	Hub           *ws.Hub
	SecureCookies bool
}

func NewRouter(d Deps) *mux.Router {
	roomHandler := &RoomHandler{Rooms: d.Rooms, SecureCookies: d.SecureCookies}
	messageHandler := &MessageHandler{Log: d.Log}
	member := middleware.RoomAuth(d.Rooms)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	// Room gate
	r.HandleFunc("/room/{roomId}", roomHandler.Join).Methods("GET")

	// API Endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/room/create", roomHandler.CreateRoom).Methods("POST")
	api.Handle("/room/meta", member(http.HandlerFunc(roomHandler.Meta))).Methods("GET")
	api.Handle("/room/participants", member(http.HandlerFunc(roomHandler.Participants))).Methods("GET")
	api.Handle("/room", member(http.HandlerFunc(roomHandler.Destroy))).Methods("DELETE")
	api.Handle("/messages", member(http.HandlerFunc(messageHandler.PostMessage))).Methods("POST")
	api.Handle("/messages", member(http.HandlerFunc(messageHandler.GetMessages))).Methods("GET")

	// WebSocket Endpoint
	api.Handle("/realtime", member(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(d.Hub, w, r, middleware.RoomID(r))
	}))).Methods("GET")

	r.HandleFunc("/", Lobby).Methods("GET")
	return r
}
