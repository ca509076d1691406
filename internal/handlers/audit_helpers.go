package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func companyIDFromContext(c *gin.Context) *string {
	if val, ok := c.Get("companyID"); ok {
		if companyID, ok := val.(string); ok && companyID != "" {
			return &companyID
		}
	}

	if header := c.GetHeader("X-Company-ID"); header != "" {
		return &header
	}
	return nil
}
