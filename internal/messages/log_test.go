package messages

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/store/sqlstore"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func setup(t *testing.T, room *models.Room) (*Log, *sqlstore.SQLStore, *recorder) {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if room != nil {
		if err := st.CreateRoom(context.Background(), room); err != nil {
			t.Fatal(err)
		}
	}
	rec := &recorder{}
	return New(st, rec), st, rec
}

func expiring(id string, d time.Duration) *models.Room {
	exp := time.Now().Add(d)
	return &models.Room{ID: id, Kind: models.PairRoom{}, CreatedAt: time.Now(), ExpiresAt: &exp}
}

func post(step uint64) Post {
	return Post{SenderToken: "sender", Ciphertext: "Y2lwaGVy", IV: "aXY=", Step: step}
}

func TestAppendAndList(t *testing.T) {
	l, _, rec := setup(t, expiring("r1", time.Minute))
	ctx := context.Background()

	for step := uint64(0); step < 3; step++ {
		msg, err := l.Append(ctx, "r1", "member", post(step))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if msg.ID == "" || msg.Timestamp == 0 || msg.RoomID != "r1" {
			t.Errorf("stored message = %+v", msg)
		}
	}

	msgs, err := l.List(ctx, "r1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Step != uint64(i) {
			t.Errorf("message %d step = %d", i, m.Step)
		}
	}

	if len(rec.events) != 3 || rec.events[0].Type != models.EventMessageAppended {
		t.Errorf("expected 3 message-appended events, got %v", rec.events)
	}
	if strings.Contains(string(rec.events[0].Data), "member") {
		t.Error("membership token must not leave the server")
	}
}

func TestAppendMissingRoom(t *testing.T) {
	l, _, rec := setup(t, nil)
	if _, err := l.Append(context.Background(), "gone", "m", post(0)); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := l.List(context.Background(), "gone"); !errors.Is(err, models.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Error("no event for a rejected append")
	}
}

func TestAppendValidation(t *testing.T) {
	l, _, _ := setup(t, expiring("r1", time.Minute))
	tests := []struct {
		name string
		p    Post
	}{
		{"empty sender", Post{Ciphertext: "c", IV: "i"}},
		{"long sender", Post{SenderToken: strings.Repeat("s", MaxSenderTokenLen+1), Ciphertext: "c", IV: "i"}},
		{"empty ciphertext", Post{SenderToken: "s", IV: "i"}},
		{"long ciphertext", Post{SenderToken: "s", Ciphertext: strings.Repeat("c", MaxCiphertextLen+1), IV: "i"}},
		{"long iv", Post{SenderToken: "s", Ciphertext: "c", IV: strings.Repeat("i", MaxIVLen+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Append(context.Background(), "r1", "m", tt.p); !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestLogFollowsRoomHorizon(t *testing.T) {
	room := expiring("r1", time.Minute)
	l, st, _ := setup(t, room)
	ctx := context.Background()

	// A message stored before the room's horizon was known.
	st.AppendMessage(ctx, &models.Message{ID: "early", RoomID: "r1", SenderToken: "s", Ciphertext: "c", IV: "i"}, nil)
	if _, err := l.Append(ctx, "r1", "m", post(0)); err != nil {
		t.Fatal(err)
	}

	// Every message now shares the room's horizon: once it passes, all go.
	n, err := st.PurgeExpired(ctx, room.ExpiresAt.Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v", n, err)
	}
	msgs, _ := st.ListMessages(ctx, "r1")
	if len(msgs) != 0 {
		t.Errorf("expected the whole log to expire with the room, %d left", len(msgs))
	}
}

func TestPermanentRoomKeepsLog(t *testing.T) {
	room := &models.Room{ID: "p", Kind: models.PrivilegedRoom{Mode: models.ModePair}, CreatedAt: time.Now()}
	l, st, _ := setup(t, room)
	ctx := context.Background()

	if _, err := l.Append(ctx, "p", "m", post(0)); err != nil {
		t.Fatal(err)
	}
	st.PurgeExpired(ctx, time.Now().Add(24*time.Hour))
	msgs, _ := l.List(ctx, "p")
	if len(msgs) != 1 {
		t.Errorf("privileged log should be permanent, got %d messages", len(msgs))
	}
}
