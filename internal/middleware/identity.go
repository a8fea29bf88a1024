package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulugbekw/imtihon/internal/dto"
)

const userIDKey = "user_id"

// Identity reads the caller's user id from the X-User-ID header set by the
// upstream auth layer. The engine does not implement identity; it only
// consults capability checks against this id.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.GetHeader("X-User-ID")
		if idStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing X-User-ID header"})
			return
		}
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Invalid X-User-ID header"})
			return
		}
		c.Set(userIDKey, uint(id))
		c.Next()
	}
}

// UserID returns the authenticated user id set by Identity.
func UserID(c *gin.Context) uint {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}
