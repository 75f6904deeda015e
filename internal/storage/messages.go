package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"strangerchat/backend/internal/models"

	"gorm.io/gorm/clause"
)

// SaveMessage зберігає повідомлення в PostgreSQL; ID та CreatedAt заповнюються тут.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	s.publish(ctx, models.TableMessages, models.ChangeInsert, msg, MessagesTopic(msg.RoomID))
	return nil
}

// GetChatHistory отримує історію повідомлень для кімнати
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	if err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at asc").
		Find(&history).Error; err != nil {
		log.Printf("ERROR: Failed to get chat history for room %s: %v", roomID, err)
		return nil, err
	}
	return history, nil
}

func (s *Service) UpsertTypingStatus(ctx context.Context, status *models.TypingStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_typing", "updated_at"}),
		}).
		Create(status).Error
	if err != nil {
		return fmt.Errorf("failed to upsert typing status: %w", err)
	}
	s.publish(ctx, models.TableTyping, models.ChangeUpdate, status, TypingTopic(status.RoomID))
	return nil
}
