package middleware

import (
	"net/http"

	"wedding-chat/internal/transport/httpdto"
	"wedding-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler logs errors attached with c.Error and answers for handlers
// that attached one without writing a response.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.WithContext(c.Request.Context()).Error("request error",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", httpdto.CodeInternal))
	}
}
