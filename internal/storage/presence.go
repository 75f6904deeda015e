package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strangerchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) UpsertOnlineUser(ctx context.Context, user *models.OnlineUser) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to register presence for %s: %w", user.SessionID, err)
	}
	s.publish(ctx, models.TableOnlineUsers, models.ChangeUpdate, user, PresenceTopic)
	return nil
}

// TouchOnlineUser refreshes last_seen only.
func (s *Service) TouchOnlineUser(ctx context.Context, sessionID string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.OnlineUser{}).
		Where("session_id = ?", sessionID).
		Update("last_seen", at)
	if res.Error != nil {
		return fmt.Errorf("failed to refresh presence for %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(ctx, models.TableOnlineUsers, models.ChangeUpdate,
			models.OnlineUser{SessionID: sessionID, LastSeen: at}, PresenceTopic)
	}
	return nil
}

func (s *Service) DeleteOnlineUser(ctx context.Context, sessionID string) error {
	res := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.OnlineUser{})
	if res.Error != nil {
		return fmt.Errorf("failed to unregister presence for %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(ctx, models.TableOnlineUsers, models.ChangeDelete,
			models.OnlineUser{SessionID: sessionID}, PresenceTopic)
	}
	return nil
}

func (s *Service) GetOnlineUser(ctx context.Context, sessionID string) (*models.OnlineUser, error) {
	var user models.OnlineUser
	err := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presence for %s: %w", sessionID, err)
	}
	return &user, nil
}

func (s *Service) CountOnlineUsers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.OnlineUser{}).
		Where("last_seen >= ?", since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return n, nil
}
