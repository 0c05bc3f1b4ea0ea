package messages

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/store"
)

const (
	MaxSenderTokenLen = 256
	MaxCiphertextLen  = 5000
	MaxIVLen          = 200
)

var ErrInvalidMessage = errors.New("invalid message")

// Publisher pushes room events to subscribers. Failures are never fatal.
type Publisher interface {
	Publish(event models.Event) error
}

// Post is an encrypted message as submitted by a client.
type Post struct {
	SenderToken string `json:"senderToken"`
	Ciphertext  string `json:"ciphertext"`
	IV          string `json:"iv"`
	Step        uint64 `json:"step"`
}

func (p Post) validate() error {
	switch {
	case p.SenderToken == "" || len(p.SenderToken) > MaxSenderTokenLen:
		return fmt.Errorf("%w: senderToken must be 1-%d characters", ErrInvalidMessage, MaxSenderTokenLen)
	case p.Ciphertext == "" || len(p.Ciphertext) > MaxCiphertextLen:
		return fmt.Errorf("%w: ciphertext must be 1-%d characters", ErrInvalidMessage, MaxCiphertextLen)
	case p.IV == "" || len(p.IV) > MaxIVLen:
		return fmt.Errorf("%w: iv must be 1-%d characters", ErrInvalidMessage, MaxIVLen)
	}
	return nil
}

// Log is the append-only, per-room record of encrypted messages. It keeps the
// log on the same expiry horizon as its room.
type Log struct {
	store store.Store
	pub   Publisher
	now   func() time.Time
}

func New(st store.Store, pub Publisher) *Log {
	return &Log{store: st, pub: pub, now: time.Now}
}

// Append stores a message in arrival order and announces it to the room.
func (l *Log) Append(ctx context.Context, roomID, memberToken string, p Post) (*models.Message, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	room, err := l.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		SenderToken: p.SenderToken,
		Ciphertext:  p.Ciphertext,
		IV:          p.IV,
		Step:        p.Step,
		Timestamp:   l.now().UnixMilli(),
		MemberToken: memberToken,
	}
	if err := l.store.AppendMessage(ctx, msg, room.ExpiresAt); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if l.pub != nil {
		if err := l.pub.Publish(models.NewEvent(models.EventMessageAppended, roomID, msg)); err != nil {
			log.Printf("room %s: message %s not pushed: %v", roomID, msg.ID, err)
		}
	}

	l.syncExpiry(ctx, room)
	return msg, nil
}

// syncExpiry puts the whole log on the room's horizon: permanent rooms get a
// permanent log. A room that lapsed between the read and now keeps its past
// horizon, so its log goes with it instead of outliving it.
func (l *Log) syncExpiry(ctx context.Context, room *models.Room) {
	ttl, permanent := room.TTL(l.now())
	if !permanent && ttl <= 0 {
		log.Printf("room %s expired during append", room.ID)
	}
	if err := l.store.SetLogExpiry(ctx, room.ID, room.ExpiresAt); err != nil {
		log.Printf("room %s: log expiry not synced: %v", room.ID, err)
	}
}

// List returns the room's messages in storage order. Callers regroup by
// sender and sort by step before replaying a ratchet.
func (l *Log) List(ctx context.Context, roomID string) ([]models.Message, error) {
	if _, err := l.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return l.store.ListMessages(ctx, roomID)
}
