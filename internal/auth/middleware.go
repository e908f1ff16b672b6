package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "auth.userId"

// Middleware rejects HTTP requests unless the Bearer token is valid and its user
// still exists, then stores the user id on the gin context.
func Middleware(gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := gate.Authenticate(c.Request.Context(), BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Not authorized",
			})
			return
		}

		c.Set(userIDKey, user.UserID())
		c.Next()
	}
}

// UserID returns the id stored by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
