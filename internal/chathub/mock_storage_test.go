package chathub_test

import (
	"context"
	"time"

	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) UpsertWaitingEntry(ctx context.Context, entry *models.WaitingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) RemoveFromWaitingPool(ctx context.Context, sessionIDs ...string) error {
	args := m.Called(ctx, sessionIDs)
	return args.Error(0)
}

func (m *MockStorage) GetWaitingEntries(ctx context.Context, exclude string) ([]models.WaitingEntry, error) {
	args := m.Called(ctx, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WaitingEntry), args.Error(1)
}

func (m *MockStorage) ClaimPair(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetActiveRoomForSession(ctx context.Context, sessionID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatRoom), args.Error(1)
}

func (m *MockStorage) CloseRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatHistory), args.Error(1)
}

func (m *MockStorage) UpsertTypingStatus(ctx context.Context, status *models.TypingStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockStorage) UpsertOnlineUser(ctx context.Context, user *models.OnlineUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) TouchOnlineUser(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *MockStorage) DeleteOnlineUser(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockStorage) GetOnlineUser(ctx context.Context, sessionID string) (*models.OnlineUser, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OnlineUser), args.Error(1)
}

func (m *MockStorage) CountOnlineUsers(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	args := m.Called(ctx, complaint)
	return args.Error(0)
}

func (m *MockStorage) GetComplaints(ctx context.Context, limit int) ([]models.Complaint, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockStorage) Subscribe(ctx context.Context, topics ...string) (storage.Subscription, error) {
	args := m.Called(ctx, topics)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(storage.Subscription), args.Error(1)
}
