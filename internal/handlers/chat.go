package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/chat"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/repositories"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/telemetry"
)

// ChatHandler exposes the conversation endpoints.
type ChatHandler struct {
	chats   *chat.Service
	auditor *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *chat.Service, auditor *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, auditor: auditor}
}

// ListSessions returns the sessions visible to the authenticated company.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	companyID := c.GetString("companyID")

	sessions, err := h.chats.ListSessions(c.Request.Context(), companyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// StartSession creates or reuses a session with another company.
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req struct {
		CompanyID string `json:"company_id" binding:"required"`
		Title     string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	companyID := c.GetString("companyID")
	session, err := h.chats.StartSession(c.Request.Context(), companyID, req.CompanyID, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	h.auditor.Emit(c.Request.Context(), "INFO", "chat session started", requestIDFromContext(c), companyIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

// GetMessages returns ordered messages and marks the counterpart's messages
// read for the caller.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("chat_id")
	companyID := c.GetString("companyID")

	msgs, err := h.chats.GetMessages(c.Request.Context(), sessionID, companyID)
	if err != nil {
		h.renderChatError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage stores a message and broadcasts it.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sessionID := c.Param("chat_id")
	companyID := c.GetString("companyID")

	var req struct {
		Content    string             `json:"content" binding:"required"`
		Attachment *models.Attachment `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), sessionID, companyID, req.Content, req.Attachment)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
			return
		}
		h.renderChatError(c, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SetArchived toggles the caller's archive flag for a session.
func (h *ChatHandler) SetArchived(c *gin.Context) {
	sessionID := c.Param("chat_id")
	companyID := c.GetString("companyID")

	var req struct {
		Archived *bool `json:"archived" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chats.SetArchived(c.Request.Context(), sessionID, companyID, *req.Archived); err != nil {
		h.renderChatError(c, err, "could not update session")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteForMe soft-deletes the session for the caller only.
func (h *ChatHandler) DeleteForMe(c *gin.Context) {
	sessionID := c.Param("chat_id")
	companyID := c.GetString("companyID")

	if err := h.chats.SoftDelete(c.Request.Context(), sessionID, companyID); err != nil {
		h.renderChatError(c, err, "could not delete session")
		return
	}

	h.auditor.Emit(c.Request.Context(), "INFO", "chat session deleted for caller", requestIDFromContext(c), companyIDFromContext(c))
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) renderChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
