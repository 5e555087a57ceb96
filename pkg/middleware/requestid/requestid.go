package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the canonical request ID header, honored when the caller
// already carries one (e.g. from an upstream proxy).
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware tags every request with an ID and echoes it back to the client.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value reads the request ID back out of the Gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
