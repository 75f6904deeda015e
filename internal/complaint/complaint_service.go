// Package complaint provides the core logic for handling abuse reports filed
// from inside a chat room.
package complaint

import (
	"context"
	"fmt"
	"strings"

	"strangerchat/backend/internal/analysis"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
)

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage
}

// NewService creates a new complaint service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// Report describes what a participant submitted.
type Report struct {
	RoomID     string
	ReporterID string
	TargetID   string
	// Reason is either a category key ("spam", "harassment", ...) or free text.
	Reason string
}

// NormalizeReason turns a dialog selection into the stored reason text.
// Known categories map to their label; anything else is free text, trimmed
// and bounded, falling back to "Other".
func NormalizeReason(reason string) string {
	trimmed := strings.TrimSpace(reason)
	if label, ok := config.ReportCategories[strings.ToLower(trimmed)]; ok {
		return label
	}
	trimmed = models.Truncate(trimmed, config.MaxReportReasonLength)
	if trimmed == "" {
		return config.DefaultReportReason
	}
	return trimmed
}

// HandleComplaint grades and stores a report together with the room transcript.
func (s *Service) HandleComplaint(ctx context.Context, r Report) (*models.Complaint, error) {
	complaintType := analysis.Classify(r.Reason)
	c := &models.Complaint{
		RoomID:        r.RoomID,
		ReporterID:    r.ReporterID,
		TargetID:      r.TargetID,
		Reason:        NormalizeReason(r.Reason),
		ComplaintType: complaintType,
		Severity:      analysis.GetWeight(complaintType),
	}

	history, err := s.Storage.GetChatHistory(ctx, r.RoomID)
	if err == nil {
		c.LoggedMessages = transcript(history, r.ReporterID)
	}

	if err := s.Storage.SaveComplaint(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save complaint: %w", err)
	}
	return c, nil
}

// transcript keeps the last ReportTranscriptLimit messages.
func transcript(history []models.ChatHistory, reporterID string) []string {
	if len(history) > config.ReportTranscriptLimit {
		history = history[len(history)-config.ReportTranscriptLimit:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "reported"
		if m.SenderID == reporterID {
			who = "reporter"
		}
		lines = append(lines, who+": "+m.Content)
	}
	return lines
}
