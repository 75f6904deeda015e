package storage

import (
	"context"
	"fmt"

	"strangerchat/backend/internal/models"

	"gorm.io/gorm/clause"
)

// UpsertWaitingEntry puts a session in the pool, replacing any previous entry.
func (s *Service) UpsertWaitingEntry(ctx context.Context, entry *models.WaitingEntry) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert waiting entry %s: %w", entry.SessionID, err)
	}
	return nil
}

// RemoveFromWaitingPool deletes the entries of the given sessions. Missing
// entries are not an error.
func (s *Service) RemoveFromWaitingPool(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Delete(&models.WaitingEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove %v from waiting pool: %w", sessionIDs, err)
	}
	return nil
}

func (s *Service) GetWaitingEntries(ctx context.Context, exclude string) ([]models.WaitingEntry, error) {
	var entries []models.WaitingEntry
	err := s.DB.WithContext(ctx).
		Where("session_id <> ?", exclude).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read waiting pool: %w", err)
	}
	return entries, nil
}
