package store

import (
	"context"
	"time"

	"github.com/pliu/hush/internal/models"
)

// Store is the durable state collaborator. All server-shared mutable state
// lives behind it; handlers and services keep none of their own.
//
// Reads treat anything past its expiry horizon as absent: GetRoom returns
// models.ErrRoomNotFound for a room that expired, even before PurgeExpired
// has removed its rows.
type Store interface {
	// Room operations
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	// AddMember appends token to the room's connected set and, in the same
	// transaction, makes it the owner if the room has none. With limit > 0
	// the append only happens while fewer than limit members exist and
	// models.ErrRoomFull reports a refusal. limit == 0 appends
	// unconditionally.
	AddMember(ctx context.Context, roomID, token string, limit int) error
	// DeleteRoom removes the room, its members and its message log. Deleting
	// an absent room is not an error.
	DeleteRoom(ctx context.Context, roomID string) error

	// Message log operations
	AppendMessage(ctx context.Context, msg *models.Message, expiresAt *time.Time) error
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	// SetLogExpiry moves the whole log of a room to one horizon; nil makes it
	// permanent.
	SetLogExpiry(ctx context.Context, roomID string, expiresAt *time.Time) error

	// PurgeExpired deletes rows whose horizon is at or before now and reports
	// how many rooms went with them.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}
