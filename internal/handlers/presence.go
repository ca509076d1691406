package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/presence"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/repositories"
)

// PresenceHandler exposes online-status queries backed by the registry.
type PresenceHandler struct {
	registry *presence.Registry
	repo     repositories.PresenceRepository
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(registry *presence.Registry, repo repositories.PresenceRepository) *PresenceHandler {
	return &PresenceHandler{registry: registry, repo: repo}
}

// GetStatus reports one user's online status. The registry answers for
// liveness; last_seen comes from the persisted cache.
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID := c.Param("user_id")

	status, err := h.repo.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"is_online": h.registry.IsOnline(userID),
		"last_seen": status.LastSeen,
	})
}

// BatchStatus reports online status for a set of users.
func (h *PresenceHandler) BatchStatus(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	statuses, err := h.repo.GetMany(c.Request.Context(), req.UserIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statuses"})
		return
	}
	lastSeen := make(map[string]time.Time, len(statuses))
	for _, status := range statuses {
		lastSeen[status.UserID] = status.LastSeen
	}

	type userStatus struct {
		UserID   string    `json:"user_id"`
		IsOnline bool      `json:"is_online"`
		LastSeen time.Time `json:"last_seen,omitempty"`
	}
	result := make([]userStatus, 0, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		result = append(result, userStatus{
			UserID:   userID,
			IsOnline: h.registry.IsOnline(userID),
			LastSeen: lastSeen[userID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"statuses": result})
}

// OnlineCount reports how many users are currently connected.
func (h *PresenceHandler) OnlineCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online_count": h.registry.OnlineCount()})
}

// Heartbeat refreshes the caller's last_seen. Failures only affect cache
// freshness, so they still return an error to prompt a client retry.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	companyID := c.GetString("companyID")
	if err := h.repo.Touch(c.Request.Context(), companyID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record heartbeat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_seen": time.Now().UTC()})
}
