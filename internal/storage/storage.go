package storage

import (
	"context"
	"errors"
	"time"

	"strangerchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrCandidateTaken means a pairing lost the race: one of the two sessions
	// already left the pool or is already in an active room.
	ErrCandidateTaken = errors.New("match candidate already taken")
	ErrRoomNotFound   = errors.New("chat room not found")
)

// Storage is the durable store and change feed the chat core runs on.
// Every write that other sessions care about is followed by a ChangeEvent on
// the matching topic. Delivery is best-effort: consumers re-read state.
type Storage interface {
	UpsertWaitingEntry(ctx context.Context, entry *models.WaitingEntry) error
	RemoveFromWaitingPool(ctx context.Context, sessionIDs ...string) error
	// GetWaitingEntries returns every waiting entry except exclude, oldest first.
	GetWaitingEntries(ctx context.Context, exclude string) ([]models.WaitingEntry, error)

	// ClaimPair creates room for its two participants and removes both from the
	// waiting pool, atomically. It returns ErrCandidateTaken if either session
	// is no longer waiting or is already in an active room.
	ClaimPair(ctx context.Context, room *models.ChatRoom) error
	// GetActiveRoomForSession returns nil, nil when the session is in no active room.
	GetActiveRoomForSession(ctx context.Context, sessionID string) (*models.ChatRoom, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error)
	// CloseRoom marks an active room inactive. Closing a closed room is a no-op.
	CloseRoom(ctx context.Context, roomID string) error

	SaveMessage(ctx context.Context, msg *models.ChatHistory) error
	// GetChatHistory returns the room's messages ordered by creation time.
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)
	UpsertTypingStatus(ctx context.Context, status *models.TypingStatus) error

	UpsertOnlineUser(ctx context.Context, user *models.OnlineUser) error
	TouchOnlineUser(ctx context.Context, sessionID string, at time.Time) error
	DeleteOnlineUser(ctx context.Context, sessionID string) error
	// GetOnlineUser returns nil, nil when the session never registered.
	GetOnlineUser(ctx context.Context, sessionID string) (*models.OnlineUser, error)
	CountOnlineUsers(ctx context.Context, since time.Time) (int64, error)

	SaveComplaint(ctx context.Context, complaint *models.Complaint) error
	GetComplaints(ctx context.Context, limit int) ([]models.Complaint, error)

	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

// Subscription delivers change events for the topics it was opened with.
// Events is closed after Close.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// PresenceTopic carries every online_users change.
const PresenceTopic = models.TableOnlineUsers

func MessagesTopic(roomID string) string { return models.TableMessages + ":room_id=" + roomID }
func RoomTopic(roomID string) string     { return models.TableChatRooms + ":id=" + roomID }
func TypingTopic(roomID string) string   { return models.TableTyping + ":room_id=" + roomID }

// SessionRoomsTopic receives a room insert when a session is claimed.
func SessionRoomsTopic(sessionID string) string {
	return models.TableChatRooms + ":session=" + sessionID
}

// Service is the PostgreSQL (gorm) + Redis pub/sub implementation.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

var _ Storage = (*Service)(nil)
