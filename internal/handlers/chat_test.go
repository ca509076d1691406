package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/chat"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/mocks"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/repositories"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/telemetry"
)

type noopBroadcaster struct{}

func (noopBroadcaster) PublishToSession(sessionID, eventType string, payload any) {}
func (noopBroadcaster) PublishToUser(userID, eventType string, payload any)      {}

func newTestChatHandler(sessions *mocks.SessionRepositoryMock, messages *mocks.MessageRepositoryMock) *ChatHandler {
	service := chat.NewService(sessions, messages, noopBroadcaster{})
	auditor := telemetry.NewAuditEmitter(nil, "audit.chat", "presence-chat-core", "test")
	return NewChatHandler(service, auditor)
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("companyID", "acme")
		c.Next()
	})
	r.GET("/chats", handler.ListSessions)
	r.POST("/chats/start", handler.StartSession)
	r.GET("/chats/:chat_id/messages", handler.GetMessages)
	r.POST("/chats/:chat_id/messages", handler.SendMessage)
	r.PATCH("/chats/:chat_id/archive", handler.SetArchived)
	r.DELETE("/chats/:chat_id/me", handler.DeleteForMe)
	return r
}

func testSession() models.ChatSession {
	return models.ChatSession{
		ID:       "s1",
		CompanyA: "acme",
		CompanyB: "beta",
		Unread:   map[string]int64{"acme": 0, "beta": 0},
		Archived: map[string]bool{},
		Deleted:  map[string]bool{},
	}
}

func TestListSessionsSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	sessions.On("ListForParty", mock.Anything, "acme").Return([]models.ChatSession{testSession()}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.SessionSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["sessions"], 1)
	assert.Equal(t, "beta", resp["sessions"][0].OtherCompanyID)
	sessions.AssertExpectations(t)
}

func TestListSessionsRepoError(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	sessions.On("ListForParty", mock.Anything, "acme").Return(([]models.ChatSession)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	sessions.AssertExpectations(t)
}

func TestStartSessionSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	sessions.On("GetOrCreate", mock.Anything, "acme", "beta", "intro").Return(testSession(), true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"company_id":"beta","title":"intro"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessions.AssertExpectations(t)
}

func TestStartSessionWithSelf(t *testing.T) {
	handler := newTestChatHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"company_id":"acme"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newTestChatHandler(sessions, messages)
	router := setupChatRouter(handler)

	sessions.On("Get", mock.Anything, "s1").Return(testSession(), nil).Once()
	sessions.On("NextSeq", mock.Anything, "s1").Return(int64(1), nil).Once()
	messages.On("Create", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.SessionID == "s1" && msg.SenderID == "acme" && msg.Content == "hi" && msg.Seq == 1
	})).Return(models.Message{ID: "m1", SessionID: "s1", SenderID: "acme", Content: "hi", Seq: 1}, nil).Once()
	sessions.On("ApplyMessage", mock.Anything, "s1", "beta", mock.Anything).Return(int64(1), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/s1/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "m1", msg.ID)
	sessions.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestSendMessageSessionNotFound(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	sessions.On("Get", mock.Anything, "missing").Return(models.ChatSession{}, repositories.ErrSessionNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/missing/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	sessions.AssertExpectations(t)
}

func TestSendMessageNotParticipant(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	other := testSession()
	other.CompanyA = "gamma"
	other.CompanyB = "delta"
	sessions.On("Get", mock.Anything, "s1").Return(other, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/s1/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	sessions.AssertExpectations(t)
}

func TestSendMessageMissingContent(t *testing.T) {
	handler := newTestChatHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats/s1/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newTestChatHandler(sessions, messages)
	router := setupChatRouter(handler)

	sessions.On("Get", mock.Anything, "s1").Return(testSession(), nil).Once()
	messages.On("MarkReadBySender", mock.Anything, "s1", "beta").Return(int64(0), nil).Once()
	sessions.On("ResetUnread", mock.Anything, "s1", "acme").Return(nil).Once()
	messages.On("ListBySession", mock.Anything, "s1").Return([]models.Message{{ID: "m1", SessionID: "s1", Seq: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/s1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessions.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestSetArchivedSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	handler := newTestChatHandler(sessions, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler)

	sessions.On("Get", mock.Anything, "s1").Return(testSession(), nil).Once()
	sessions.On("SetArchived", mock.Anything, "s1", "acme", true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/chats/s1/archive", bytes.NewBufferString(`{"archived":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertExpectations(t)
}

func TestDeleteForMeSuccess(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newTestChatHandler(sessions, messages)
	router := setupChatRouter(handler)

	session := testSession()
	deleted := testSession()
	deleted.Deleted = map[string]bool{"acme": true}
	sessions.On("Get", mock.Anything, "s1").Return(session, nil).Once()
	sessions.On("SoftDelete", mock.Anything, "s1", "acme").Return(deleted, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/s1/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertExpectations(t)
}

func TestDeleteForMePurgesTerminalSession(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newTestChatHandler(sessions, messages)
	router := setupChatRouter(handler)

	session := testSession()
	session.Deleted = map[string]bool{"beta": true}
	terminal := testSession()
	terminal.Deleted = map[string]bool{"acme": true, "beta": true}
	sessions.On("Get", mock.Anything, "s1").Return(session, nil).Once()
	sessions.On("SoftDelete", mock.Anything, "s1", "acme").Return(terminal, nil).Once()
	messages.On("PurgeBySession", mock.Anything, "s1").Return(int64(3), nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/s1/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertExpectations(t)
	messages.AssertExpectations(t)
}
