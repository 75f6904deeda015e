package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRoom represents a 1-on-1 chat session between two anonymous sessions.
// IsActive is the single authoritative signal of room life; once it is false
// the room is never reopened.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// User1ID is the session that created the room.
	User1ID string `gorm:"not null;index" json:"user1_id"`
	// User2ID is the session that was claimed from the waiting pool.
	User2ID string `gorm:"not null;index" json:"user2_id"`
	// IsActive indicates whether the chat room is currently active.
	IsActive bool `gorm:"not null;index" json:"is_active"`
	// StartedAt is the timestamp when the chat room was created.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is the timestamp when the chat room was closed.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// BeforeCreate generates the room id if the caller did not.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.RoomID == "" {
		r.RoomID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether sessionID is one of the two participants.
func (r *ChatRoom) HasParticipant(sessionID string) bool {
	return r.User1ID == sessionID || r.User2ID == sessionID
}

// PeerOf returns the other participant, or "" if sessionID is not in the room.
func (r *ChatRoom) PeerOf(sessionID string) string {
	switch sessionID {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
