package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/presence"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints: an audit-pipeline check
// and a dump of the registry's online users. Gated off in production.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, registry *presence.Registry, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), companyIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/online-users", func(c *gin.Context) {
		users := registry.OnlineUsers()
		c.JSON(http.StatusOK, gin.H{
			"online_count": len(users),
			"online_users": users,
		})
	})
}
