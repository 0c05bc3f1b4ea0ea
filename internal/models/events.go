package models

import "encoding/json"

type EventType string

const (
	EventMessageAppended         EventType = "message-appended"
	EventRoomDestroyed           EventType = "room-destroyed"
	EventParticipantCountChanged EventType = "participant-count-changed"
)

// Event is pushed to every subscriber of a room channel.
type Event struct {
	Type   EventType       `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

type ParticipantCount struct {
	Count int `json:"count"`
}

type Destroyed struct {
	IsDestroyed bool `json:"isDestroyed"`
}

// NewEvent marshals data into an Event. data is always one of this package's
// payload types, so marshalling cannot fail in practice.
func NewEvent(t EventType, roomID string, data any) Event {
	raw, _ := json.Marshal(data)
	return Event{Type: t, RoomID: roomID, Data: raw}
}
