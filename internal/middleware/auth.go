package middleware

import (
	"shopflow/internal/repository"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware guards storefront read endpoints with a client API key.
func APIKeyMiddleware(repo repository.ClientRepository, bypass bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bypass {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-Shop-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing API key"})
			return
		}

		ok, err := repo.ValidateAPIKey(c.Request.Context(), apiKey)
		if err != nil || !ok {
			c.AbortWithStatusJSON(403, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
