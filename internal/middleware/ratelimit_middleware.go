package middleware

import (
	"net/http"
	"strconv"

	"wedding-chat/internal/redis"
	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// MessageRateLimitMiddleware throttles message sends per authenticated user.
// It must run after AuthMiddleware.
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowMessage(c.Request.Context(), userID.String())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("rate limit unavailable", httpdto.CodeStoreUnavailable))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("message rate limit exceeded", httpdto.CodeRateLimited))
			c.Abort()
			return
		}

		c.Next()
	}
}

// MessageRateLimitStatus reports the caller's window without consuming it.
func MessageRateLimitStatus(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, httpdto.Unauthorized())
			return
		}

		result, err := limiter.GetMessageStatus(c.Request.Context(), userID.String())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("rate limit unavailable", httpdto.CodeStoreUnavailable))
			return
		}

		setRateLimitHeaders(c, result)
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.RateLimitStatusDTO{
			Allowed:        result.Allowed,
			Limit:          result.Limit,
			Remaining:      result.Remaining,
			ResetInSeconds: int64(result.ResetIn.Seconds()),
		}))
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
