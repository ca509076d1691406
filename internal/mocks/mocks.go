package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) GetOrCreate(ctx context.Context, requester, other, title string) (models.ChatSession, bool, error) {
	args := m.Called(ctx, requester, other, title)
	var session models.ChatSession
	if val := args.Get(0); val != nil {
		session = val.(models.ChatSession)
	}
	return session, args.Bool(1), args.Error(2)
}

func (m *SessionRepositoryMock) Get(ctx context.Context, sessionID string) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	var session models.ChatSession
	if val := args.Get(0); val != nil {
		session = val.(models.ChatSession)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) ListForParty(ctx context.Context, companyID string) ([]models.ChatSession, error) {
	args := m.Called(ctx, companyID)
	var sessions []models.ChatSession
	if val := args.Get(0); val != nil {
		sessions = val.([]models.ChatSession)
	}
	return sessions, args.Error(1)
}

func (m *SessionRepositoryMock) SetArchived(ctx context.Context, sessionID, companyID string, archived bool) error {
	args := m.Called(ctx, sessionID, companyID, archived)
	return args.Error(0)
}

func (m *SessionRepositoryMock) SoftDelete(ctx context.Context, sessionID, companyID string) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID, companyID)
	var session models.ChatSession
	if val := args.Get(0); val != nil {
		session = val.(models.ChatSession)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionRepositoryMock) ApplyMessage(ctx context.Context, sessionID, recipient string, msg models.Message) (int64, error) {
	args := m.Called(ctx, sessionID, recipient, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionRepositoryMock) ResetUnread(ctx context.Context, sessionID, companyID string) error {
	args := m.Called(ctx, sessionID, companyID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkReadBySender(ctx context.Context, sessionID, senderID string) (int64, error) {
	args := m.Called(ctx, sessionID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) PurgeBySession(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) SetOnline(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) SetOffline(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) Touch(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) Get(ctx context.Context, userID string) (models.PresenceStatus, error) {
	args := m.Called(ctx, userID)
	var status models.PresenceStatus
	if val := args.Get(0); val != nil {
		status = val.(models.PresenceStatus)
	}
	return status, args.Error(1)
}

func (m *PresenceRepositoryMock) GetMany(ctx context.Context, userIDs []string) ([]models.PresenceStatus, error) {
	args := m.Called(ctx, userIDs)
	var statuses []models.PresenceStatus
	if val := args.Get(0); val != nil {
		statuses = val.([]models.PresenceStatus)
	}
	return statuses, args.Error(1)
}

func (m *PresenceRepositoryMock) FindStaleOnline(ctx context.Context, olderThan time.Time) ([]models.PresenceStatus, error) {
	args := m.Called(ctx, olderThan)
	var statuses []models.PresenceStatus
	if val := args.Get(0); val != nil {
		statuses = val.([]models.PresenceStatus)
	}
	return statuses, args.Error(1)
}
