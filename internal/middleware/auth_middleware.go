package middleware

import (
	"context"
	"net/http"
	"strings"

	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"
	"wedding-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := service.Authenticate(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.Unauthorized())
			c.Abort()
			return
		}

		ctx := services.WithIdentity(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
