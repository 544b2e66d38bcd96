package middleware

import (
	"crypto/subtle"
	"net/http"

	"zzik-backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type Authorization struct {
	adminKey string
}

func NewAuthorization(adminKey string) *Authorization {
	return &Authorization{
		adminKey: adminKey,
	}
}

// AdminOnly gates the review/QR-issuing endpoints behind a static API key
// presented in the X-Admin-Key header.
func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		if a.adminKey == "" {
			log.Error("admin api key is not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		key := c.GetHeader("X-Admin-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(a.adminKey)) != 1 {
			log.Info("rejected admin request with invalid key",
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("is_admin", true)
		c.Next()
	}
}
