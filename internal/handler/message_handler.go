package handler

import (
	"net/http"
	"strconv"

	"wedding-chat/internal/domain/message"
	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messages *services.MessageService
	reads    *services.UnreadReconciler
	logger   *zap.Logger
}

func NewMessageHandler(messages *services.MessageService, reads *services.UnreadReconciler, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{messages: messages, reads: reads, logger: logger}
}

// List returns history and marks the conversation read for the caller.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.messages.ListMessages(c.Request.Context(), conversationID, identity.UserID, afterSeq, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := h.reads.MarkConversationReadBy(c.Request.Context(), conversationID, identity.UserID); err != nil {
		h.logger.Warn("mark read after history fetch failed",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
	}

	next := afterSeq
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].Seq
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{
		Messages:     httpdto.FromMessageSlice(msgs),
		NextAfterSeq: next,
	}))
}

func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.InvalidArgument("invalid request"))
		return
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	// no origin connection, so the sender's own joined sockets get new-message too
	msg, err := h.messages.SendMessage(c.Request.Context(), services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       identity.UserID,
		SenderName:     identity.Name,
		SenderEmail:    identity.Email,
		Content:        req.Content,
		Kind:           message.Kind(req.Kind),
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	receipt, err := h.reads.MarkConversationReadBy(c.Request.Context(), conversationID, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ReadReceiptDTO{
		ConversationID: receipt.ConversationID.String(),
		ReaderRole:     string(receipt.ReaderRole),
		MessagesMarked: receipt.MessagesMarked,
		ReadAt:         receipt.ReadAt,
	}))
}
