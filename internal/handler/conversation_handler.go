package handler

import (
	"net/http"
	"strconv"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.InvalidArgument("invalid request"))
		return
	}

	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.InvalidArgument("invalid client id"))
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.InvalidArgument("invalid provider id"))
		return
	}

	conv, created, err := h.service.FindOrCreate(c.Request.Context(), services.FindOrCreateInput{
		ClientID:     clientID,
		ProviderID:   providerID,
		ProviderType: conversation.ProviderType(req.ProviderType),
		ActorID:      identity.UserID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, total, err := h.service.ListForParticipant(c.Request.Context(), identity.UserID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.FromConversationSlice(items),
		Total:         total,
	}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	conv, err := h.service.Get(c.Request.Context(), conversationID, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), conversationID, identity.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}
