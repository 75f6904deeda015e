package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

// Complaint is an abuse report filed by one participant against the other.
// Filing one always ends the room.
type Complaint struct {
	ComplaintID   string `gorm:"primaryKey" json:"complaint_id"`
	RoomID        string `gorm:"index;not null" json:"room_id"`
	ReporterID    string `gorm:"not null" json:"reporter_id"`
	TargetID      string `gorm:"index;not null" json:"target_id"`
	Reason        string `gorm:"type:text" json:"reason"`
	ComplaintType string `json:"complaint_type"` // "Low", "Medium", "Critical"
	Severity      int    `json:"severity"`
	// LoggedMessages is the room transcript at report time, one "sender: text" per line.
	LoggedMessages pq.StringArray `gorm:"type:text[]" json:"logged_messages"`
	Status         string         `json:"status"` // "new", "reviewed"
	CreatedAt      time.Time      `json:"created_at"`
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ComplaintID == "" {
		c.ComplaintID = uuid.New().String()
	}
	return
}
