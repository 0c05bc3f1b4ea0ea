package room

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/hush/internal/models"
	"github.com/pliu/hush/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL = 10 * time.Minute

	// bcrypt only reads the first 72 bytes.
	MaxPasscodeLen = 72
)

var ErrPasscodeTooLong = fmt.Errorf("passcode longer than %d bytes", MaxPasscodeLen)

// Publisher pushes room events to subscribers. Failures are never fatal.
type Publisher interface {
	Publish(event models.Event) error
}

type Config struct {
	TTL             time.Duration
	MasterPasscode  string
	StrictAdmission bool
}

type Service struct {
	store    store.Store
	pub      Publisher
	cfg      Config
	now      func() time.Time
	newToken func() string
}

func New(st store.Store, pub Publisher, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Service{
		store:    st,
		pub:      pub,
		cfg:      cfg,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

type CreateRequest struct {
	Mode             string `json:"mode"`
	Passcode         string `json:"passcode"`
	PrivilegedSecret string `json:"privilegedSecret"`
}

// Create opens a room. Group rooms require a passcode; a matching privileged
// secret makes the room permanent and unbounded.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Room, error) {
	mode := models.ParseMode(req.Mode)
	passcode := strings.TrimSpace(req.Passcode)

	var hash string
	if mode == models.ModeGroup {
		if passcode == "" {
			return nil, models.ErrPasscodeMissing
		}
		if len(passcode) > MaxPasscodeLen {
			return nil, ErrPasscodeTooLong
		}
		h, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		hash = string(h)
	}

	privileged := s.privileged(req.PrivilegedSecret)
	kind, err := models.NewKind(mode, hash, privileged)
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &models.Room{
		ID:        uuid.NewString(),
		Kind:      kind,
		Connected: []string{},
		CreatedAt: now,
	}
	if !privileged {
		exp := now.Add(s.cfg.TTL)
		room.ExpiresAt = &exp
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	log.Printf("room %s created (mode=%s privileged=%v)", room.ID, mode, privileged)
	return room, nil
}

// privileged compares against the server-held credential only. An unset
// credential grants nothing.
func (s *Service) privileged(secret string) bool {
	if s.cfg.MasterPasscode == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.MasterPasscode)) == 1
}

// Admission is a successful join decision.
type Admission struct {
	Token    string
	Existing bool
	Count    int
}

// Join decides a join attempt. A caller already holding a membership token of
// this room is admitted unchanged; anyone else needs a free seat and, for
// group rooms, the passcode.
func (s *Service) Join(ctx context.Context, roomID, memberToken, passcode string) (*Admission, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.IsMember(memberToken) {
		return &Admission{Token: memberToken, Existing: true, Count: len(room.Connected)}, nil
	}

	capacity, bounded := room.Capacity()
	if room.Full() {
		return nil, models.ErrRoomFull
	}

	if room.Mode() == models.ModeGroup {
		// bcrypt only reads MaxPasscodeLen bytes; anything longer cannot be
		// the stored passcode.
		if passcode == "" || len(passcode) > MaxPasscodeLen ||
			bcrypt.CompareHashAndPassword([]byte(room.PasscodeHash()), []byte(passcode)) != nil {
			return nil, models.ErrPasscodeRequired
		}
	}

	limit := 0
	if s.cfg.StrictAdmission && bounded {
		limit = capacity
	}
	token := s.newToken()
	if err := s.store.AddMember(ctx, roomID, token, limit); err != nil {
		return nil, err
	}

	// The count comes from the read above; under concurrent joins it can be
	// briefly stale.
	count := len(room.Connected) + 1
	s.publish(models.NewEvent(models.EventParticipantCountChanged, roomID, models.ParticipantCount{Count: count}))
	return &Admission{Token: token, Count: count}, nil
}

// Member returns the room if token belongs to it.
func (s *Service) Member(ctx context.Context, roomID, token string) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsMember(token) {
		return nil, models.ErrNotMember
	}
	return room, nil
}

func (s *Service) Meta(ctx context.Context, roomID, callerToken string) (*models.Meta, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	meta := &models.Meta{
		Mode:       room.Mode(),
		IsOwner:    callerToken != "" && callerToken == room.OwnerToken,
		Privileged: room.Privileged(),
	}
	if n, bounded := room.Capacity(); bounded {
		meta.Capacity = &n
	}
	if ttl, permanent := room.TTL(s.now()); !permanent {
		secs := int64(ttl / time.Second)
		meta.TTLSeconds = &secs
		if secs > 0 {
			meta.ExpiresAt = room.ExpiresAt
		}
	}
	return meta, nil
}

func (s *Service) ParticipantCount(ctx context.Context, roomID string) (int, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return len(room.Connected), nil
}

// Destroy removes a room and everything stored under it. Pair rooms may be
// destroyed by any member, group rooms only by their owner. Destroying a room
// that is already gone succeeds.
func (s *Service) Destroy(ctx context.Context, roomID, callerToken string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, models.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if room.Mode() == models.ModeGroup && (callerToken == "" || callerToken != room.OwnerToken) {
		return models.ErrForbidden
	}

	s.publish(models.NewEvent(models.EventRoomDestroyed, roomID, models.Destroyed{IsDestroyed: true}))
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	log.Printf("room %s destroyed", roomID)
	return nil
}

func (s *Service) publish(ev models.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ev); err != nil {
		log.Printf("room %s: %s not delivered: %v", ev.RoomID, ev.Type, err)
	}
}
