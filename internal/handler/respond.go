package handler

import (
	"net/http"

	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		// store details stay in the logs
		_ = c.Error(err)
		msg = http.StatusText(status)
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, services.ErrorCode(err)))
}

func requireIdentity(c *gin.Context) (services.Identity, bool) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.Unauthorized())
		return services.Identity{}, false
	}
	return id, true
}

func conversationIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.InvalidArgument("invalid conversation id"))
		return uuid.Nil, false
	}
	return id, true
}
