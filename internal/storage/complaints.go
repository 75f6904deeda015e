package storage

import (
	"context"
	"log"

	"strangerchat/backend/internal/models"
)

func (s *Service) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Status == "" {
		complaint.Status = "new"
	}

	result := s.DB.WithContext(ctx).Create(complaint)
	if result.Error != nil {
		log.Printf("ERROR: Failed to save complaint for room %s: %v", complaint.RoomID, result.Error)
		return result.Error
	}
	return nil
}

// GetComplaints returns the newest complaints first.
func (s *Service) GetComplaints(ctx context.Context, limit int) ([]models.Complaint, error) {
	var complaints []models.Complaint
	q := s.DB.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&complaints).Error; err != nil {
		return nil, err
	}
	return complaints, nil
}
