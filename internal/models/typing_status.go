package models

import "time"

// TypingStatus is the last known typing flag of one participant in one room.
// It is overwritten in place.
type TypingStatus struct {
	RoomID    string    `gorm:"primaryKey" json:"room_id"`
	SessionID string    `gorm:"primaryKey" json:"session_id"`
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TypingStatus) TableName() string {
	return "typing_status"
}
