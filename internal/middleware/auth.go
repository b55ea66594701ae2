package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/auth"
)

// AuthMiddleware validates the bearer token on every request and stores the
// resolved identity in the gin context.
func AuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "No authorization header"},
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Invalid authorization header format"},
			})
			c.Abort()
			return
		}

		identity, err := validator.ValidateAccess(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Invalid token"},
			})
			c.Abort()
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("user_name", identity.Name)
		c.Set("token", parts[1])
		c.Next()
	}
}
