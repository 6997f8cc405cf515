package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "requestId"
const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a stable identifier, honoring one supplied
// by the fronting proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the request's identifier, or "" outside the
// middleware.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
