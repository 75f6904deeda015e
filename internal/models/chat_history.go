package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatHistory is a chat message as persisted. Rows are append-only and are
// ordered by CreatedAt within a room.
type ChatHistory struct {
	// ID is the message id (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// RoomID is the identifier of the chat room where the message was sent.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	// SenderID is the session id of the author.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg" json:"sender_id"`
	// Content is the trimmed message text.
	Content string `gorm:"type:text;not null" json:"content"`
	// CreatedAt orders messages inside a room.
	CreatedAt time.Time `gorm:"index:idx_room_msg" json:"created_at"`
}

func (h *ChatHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return
}
