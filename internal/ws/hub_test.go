package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pliu/hush/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, r.URL.Query().Get("roomId"))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?roomId=" + roomID
	before := hub.Subscribers(roomID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(roomID) == before {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestHubFanoutIsPerRoom(t *testing.T) {
	hub, srv := startHub(t)
	a1 := dial(t, hub, srv, "room-a")
	a2 := dial(t, hub, srv, "room-a")
	b := dial(t, hub, srv, "room-b")

	if err := hub.Publish(models.NewEvent(models.EventParticipantCountChanged, "room-a", models.ParticipantCount{Count: 2})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := hub.Publish(models.NewEvent(models.EventMessageAppended, "room-b", models.Message{ID: "m1"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, conn := range []*websocket.Conn{a1, a2} {
		ev := readEvent(t, conn)
		if ev.Type != models.EventParticipantCountChanged || ev.RoomID != "room-a" {
			t.Errorf("room-a subscriber got %s for %s", ev.Type, ev.RoomID)
		}
		var pc models.ParticipantCount
		json.Unmarshal(ev.Data, &pc)
		if pc.Count != 2 {
			t.Errorf("count = %d, want 2", pc.Count)
		}
	}

	ev := readEvent(t, b)
	if ev.Type != models.EventMessageAppended {
		t.Errorf("room-b subscriber got %s", ev.Type)
	}
}

func TestHubClosesChannelOnDestroy(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv, "room-a")

	hub.Publish(models.NewEvent(models.EventRoomDestroyed, "room-a", models.Destroyed{IsDestroyed: true}))
	if ev := readEvent(t, conn); ev.Type != models.EventRoomDestroyed {
		t.Fatalf("got %s, want room-destroyed", ev.Type)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
		t.Fatalf("expected close after destroy, got %v", err)
	}
	if n := hub.Subscribers("room-a"); n != 0 {
		t.Errorf("Subscribers = %d after destroy, want 0", n)
	}
}

func TestPublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := hub.Publish(models.NewEvent(models.EventMessageAppended, "r", models.Message{}))
	if !errors.Is(err, ErrRealtimeUnavailable) {
		t.Fatalf("expected ErrRealtimeUnavailable, got %v", err)
	}
}
