package models

import "time"

// WaitingEntry is a session sitting in the waiting pool. There is at most one
// per session; re-entering the pool replaces it.
type WaitingEntry struct {
	SessionID  string     `gorm:"primaryKey" json:"session_id"`
	Name       string     `json:"name"`
	Location   string     `json:"location"`
	Gender     Gender     `gorm:"type:text;not null;default:other" json:"gender"`
	LookingFor LookingFor `gorm:"type:text;not null;default:everyone" json:"looking_for"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// NewWaitingEntry builds the pool entry for a session entering the pool now.
func NewWaitingEntry(sessionID string, p Profile, at time.Time) *WaitingEntry {
	return &WaitingEntry{
		SessionID:  sessionID,
		Name:       p.Name,
		Location:   p.Location,
		Gender:     p.Gender,
		LookingFor: p.LookingFor,
		CreatedAt:  at,
	}
}

func (w *WaitingEntry) Profile() Profile {
	return Profile{Name: w.Name, Location: w.Location, Gender: w.Gender, LookingFor: w.LookingFor}
}
