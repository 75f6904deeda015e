package models

import "encoding/json"

// Change kinds carried by ChangeEvent.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Table names used in change notifications.
const (
	TableMessages    = "messages"
	TableChatRooms   = "chat_rooms"
	TableTyping      = "typing_status"
	TableOnlineUsers = "online_users"
)

// ChangeEvent is the envelope published after a committed write. Record holds
// the JSON of the new row (the old row for deletes).
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

// Decode unmarshals the record into v.
func (e ChangeEvent) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}
