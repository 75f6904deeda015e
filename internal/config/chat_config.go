package config

import "time"

const (
	// Matching
	DefaultPollInterval = 2 * time.Second
	DefaultMatchTimeout = 5 * time.Minute

	// Presence
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultPresenceTTL          = 2 * time.Minute
	DefaultCountRefreshInterval = 10 * time.Second

	// Typing indicator
	DefaultTypingIdleTimeout = 2 * time.Second

	// Relay re-reads the room this often in case notifications were missed.
	DefaultRelayResyncInterval = 10 * time.Second

	// A session with no attached client is torn down after this long.
	DefaultDetachGrace = 30 * time.Second

	// Reports
	MaxReportReasonLength = 500
	DefaultReportReason   = "Other"
	ReportTranscriptLimit = 50
)

// ReportCategories maps the reason picked in the report dialog to the text
// stored on the complaint.
var ReportCategories = map[string]string{
	"inappropriate": "Inappropriate content",
	"harassment":    "Harassment or bullying",
	"spam":          "Spam or scam",
	"underage":      "Underage user",
	"other":         DefaultReportReason,
}

// ComplaintWeights is the severity assigned to each complaint type.
var ComplaintWeights = map[string]int{
	"Low":      5,
	"Medium":   50,
	"Critical": 250,
}

// CategoryComplaintType classifies report categories.
var CategoryComplaintType = map[string]string{
	"inappropriate": "Medium",
	"harassment":    "Critical",
	"spam":          "Low",
	"underage":      "Critical",
	"other":         "Low",
}
