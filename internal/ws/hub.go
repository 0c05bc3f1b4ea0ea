package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/pliu/hush/internal/models"
)

var ErrRealtimeUnavailable = errors.New("realtime fan-out unavailable")

// Hub fans room events out to websocket subscribers. Delivery is best-effort:
// a subscriber that cannot keep up is dropped and falls back to polling.
type Hub struct {
	// Subscribers per room channel.
	rooms map[string]map[*Client]bool

	// Events to fan out.
	broadcast chan models.Event

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Subscriber count queries.
	counts chan countRequest

	// Closed when Run returns.
	done chan struct{}
}

type countRequest struct {
	roomID string
	reply  chan int
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan models.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber table until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
			}
			h.rooms = map[string]map[*Client]bool{}
			return
		case client := <-h.register:
			clients, ok := h.rooms[client.roomID]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.roomID] = clients
			}
			clients[client] = true
		case client := <-h.unregister:
			h.remove(client)
		case req := <-h.counts:
			req.reply <- len(h.rooms[req.roomID])
		case event := <-h.broadcast:
			msgBytes, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error encoding %s event: %v", event.Type, err)
				continue
			}
			for client := range h.rooms[event.RoomID] {
				select {
				case client.send <- msgBytes:
				default:
					h.remove(client)
				}
			}
			// Nothing more will ever be said on a destroyed room's channel.
			if event.Type == models.EventRoomDestroyed {
				for client := range h.rooms[event.RoomID] {
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.roomID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.roomID)
	}
}

// Publish queues an event without blocking. It fails with
// ErrRealtimeUnavailable when the hub is stopped or saturated.
func (h *Hub) Publish(event models.Event) error {
	select {
	case <-h.done:
		return ErrRealtimeUnavailable
	default:
	}
	select {
	case h.broadcast <- event:
		return nil
	default:
		return ErrRealtimeUnavailable
	}
}

// Subscribers reports how many connections listen on roomID.
func (h *Hub) Subscribers(roomID string) int {
	req := countRequest{roomID: roomID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}
