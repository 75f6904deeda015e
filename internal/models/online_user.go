package models

import "time"

// OnlineUser is the presence record of a session. A record counts as online
// while LastSeen is fresher than the presence TTL.
type OnlineUser struct {
	SessionID  string     `gorm:"primaryKey" json:"session_id"`
	Name       string     `json:"name"`
	Location   string     `json:"location"`
	Gender     Gender     `gorm:"type:text" json:"gender"`
	LookingFor LookingFor `gorm:"type:text" json:"looking_for"`
	LastSeen   time.Time  `gorm:"not null;index" json:"last_seen"`
}

func NewOnlineUser(sessionID string, p Profile, at time.Time) *OnlineUser {
	return &OnlineUser{
		SessionID:  sessionID,
		Name:       p.Name,
		Location:   p.Location,
		Gender:     p.Gender,
		LookingFor: p.LookingFor,
		LastSeen:   at,
	}
}

// PartnerInfo is the part of a profile shown to the other participant.
type PartnerInfo struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Gender   Gender `json:"gender"`
}

// Placeholder values used when a peer never registered presence.
const (
	UnknownPartnerName     = "Stranger"
	UnknownPartnerLocation = "Unknown"
)

// PartnerInfoFrom fills the missing fields with the neutral placeholders.
func PartnerInfoFrom(name, location string, gender Gender) PartnerInfo {
	info := PartnerInfo{Name: name, Location: location, Gender: gender}
	if info.Name == "" {
		info.Name = UnknownPartnerName
	}
	if info.Location == "" {
		info.Location = UnknownPartnerLocation
	}
	if info.Gender == "" {
		info.Gender = GenderOther
	}
	return info
}
