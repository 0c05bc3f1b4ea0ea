package models

import "time"

type Mode string

const (
	ModePair  Mode = "pair"
	ModeGroup Mode = "group"
)

const (
	PairCapacity  = 2
	GroupCapacity = 12
)

// ParseMode maps client input to a Mode. Anything but "group" is a pair room.
func ParseMode(s string) Mode {
	if s == string(ModeGroup) {
		return ModeGroup
	}
	return ModePair
}

// Kind is the room's variant. Exactly one of PairRoom, GroupRoom or
// PrivilegedRoom.
type Kind interface {
	kind()
}

// PairRoom holds two participants and expires.
type PairRoom struct{}

// GroupRoom holds up to GroupCapacity participants behind a passcode and
// expires. Only its owner may destroy it.
type GroupRoom struct {
	PasscodeHash string
}

// PrivilegedRoom was created with the server's override credential. It has
// no capacity bound and no expiry. PasscodeHash is set iff Mode is group.
type PrivilegedRoom struct {
	Mode         Mode
	PasscodeHash string
}

func (PairRoom) kind()       {}
func (GroupRoom) kind()      {}
func (PrivilegedRoom) kind() {}

// NewKind rebuilds the variant from its flat stored form and enforces that a
// passcode exists iff the room is a group room.
func NewKind(mode Mode, passcodeHash string, privileged bool) (Kind, error) {
	switch mode {
	case ModePair:
		if passcodeHash != "" {
			return nil, ErrInvalidMode
		}
	case ModeGroup:
		if passcodeHash == "" {
			return nil, ErrPasscodeMissing
		}
	default:
		return nil, ErrInvalidMode
	}
	if privileged {
		return PrivilegedRoom{Mode: mode, PasscodeHash: passcodeHash}, nil
	}
	if mode == ModeGroup {
		return GroupRoom{PasscodeHash: passcodeHash}, nil
	}
	return PairRoom{}, nil
}

type Room struct {
	ID         string
	Kind       Kind
	Connected  []string // membership tokens, join order
	OwnerToken string
	CreatedAt  time.Time
	ExpiresAt  *time.Time // nil: permanent
}

func (r *Room) Mode() Mode {
	switch k := r.Kind.(type) {
	case GroupRoom:
		return ModeGroup
	case PrivilegedRoom:
		return k.Mode
	default:
		return ModePair
	}
}

// Capacity reports the participant limit; bounded is false for privileged rooms.
func (r *Room) Capacity() (n int, bounded bool) {
	switch r.Kind.(type) {
	case PrivilegedRoom:
		return 0, false
	case GroupRoom:
		return GroupCapacity, true
	default:
		return PairCapacity, true
	}
}

func (r *Room) Privileged() bool {
	_, ok := r.Kind.(PrivilegedRoom)
	return ok
}

func (r *Room) PasscodeHash() string {
	switch k := r.Kind.(type) {
	case GroupRoom:
		return k.PasscodeHash
	case PrivilegedRoom:
		return k.PasscodeHash
	}
	return ""
}

func (r *Room) IsMember(token string) bool {
	if token == "" {
		return false
	}
	for _, t := range r.Connected {
		if t == token {
			return true
		}
	}
	return false
}

func (r *Room) Full() bool {
	n, bounded := r.Capacity()
	return bounded && len(r.Connected) >= n
}

// TTL is the time left before expiry at now. permanent is true when the room
// never expires; a lapsed room reports 0.
func (r *Room) TTL(now time.Time) (ttl time.Duration, permanent bool) {
	if r.ExpiresAt == nil {
		return 0, true
	}
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d, false
	}
	return 0, false
}

// Message is one encrypted payload. The server never holds its key.
type Message struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	SenderToken string `json:"senderToken"`
	Ciphertext  string `json:"ciphertext"`
	IV          string `json:"iv"`
	Step        uint64 `json:"step"`
	Timestamp   int64  `json:"timestamp"` // unix millis
	MemberToken string `json:"-"`
}

// Meta is what a member sees about its room.
type Meta struct {
	Mode       Mode       `json:"mode"`
	Capacity   *int       `json:"capacity"`
	IsOwner    bool       `json:"isOwner"`
	TTLSeconds *int64     `json:"ttl"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	Privileged bool       `json:"privileged"`
}
