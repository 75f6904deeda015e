package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"strangerchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimPair is the single commit point of matching. Both waiting rows are
// locked in a fixed order so two clients claiming overlapping pairs serialise
// instead of both succeeding.
func (s *Service) ClaimPair(ctx context.Context, room *models.ChatRoom) error {
	ids := []string{room.User1ID, room.User2ID}
	if room.StartedAt.IsZero() {
		room.StartedAt = time.Now()
	}
	room.IsActive = true

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.WaitingEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id IN ?", ids).
			Order("session_id").
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) != 2 {
			return ErrCandidateTaken
		}

		var busy int64
		if err := tx.Model(&models.ChatRoom{}).
			Where("is_active = ?", true).
			Where("user1_id IN ? OR user2_id IN ?", ids, ids).
			Count(&busy).Error; err != nil {
			return err
		}
		if busy > 0 {
			return ErrCandidateTaken
		}

		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Where("session_id IN ?", ids).Delete(&models.WaitingEntry{}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrCandidateTaken) {
			log.Printf("ERROR: Failed to claim pair %s/%s: %v", room.User1ID, room.User2ID, err)
		}
		return err
	}

	s.publish(ctx, models.TableChatRooms, models.ChangeInsert, room,
		SessionRoomsTopic(room.User1ID), SessionRoomsTopic(room.User2ID))
	return nil
}

// GetActiveRoomForSession знаходить активну кімнату, в якій бере участь сесія.
func (s *Service) GetActiveRoomForSession(ctx context.Context, sessionID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", sessionID, sessionID).
		Order("started_at desc").
		First(&room).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active room for %s: %w", sessionID, err)
	}
	return &room, nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return &room, nil
}

// GetActiveRooms returns every active room, oldest first.
func (s *Service) GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("started_at").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}
	return rooms, nil
}

// CloseRoom закриває кімнату, встановлюючи IsActive = false та EndedAt.
// The update only matches active rows, so a closed room is never touched again.
func (s *Service) CloseRoom(ctx context.Context, roomID string) error {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to close room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	s.publish(ctx, models.TableChatRooms, models.ChangeUpdate, room, RoomTopic(roomID))
	return nil
}
