package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
	"wedding-chat/internal/redis"
	"wedding-chat/internal/services"
	"wedding-chat/internal/transport/httpdto"
	"wedding-chat/internal/transport/wsdto"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errBadFrame = errors.New("bad frame")

const defaultOpTimeout = 10 * time.Second

var serverErrorMessages = map[string]string{
	wsdto.ErrCodeInternal:         "internal error",
	wsdto.ErrCodeStoreUnavailable: "store unavailable",
}

// MessageLimiter throttles message sends per user.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

type Handler struct {
	auth       *services.AuthService
	router     *Router
	authorizer RoomAuthorizer
	messages   *services.MessageService
	reads      *services.UnreadReconciler
	limiter    MessageLimiter
	logger     *WebSocketLogger
	opTimeout  time.Duration
}

// NewHandler wires the socket endpoint. limiter may be nil.
func NewHandler(
	auth *services.AuthService,
	router *Router,
	authorizer RoomAuthorizer,
	messages *services.MessageService,
	reads *services.UnreadReconciler,
	limiter MessageLimiter,
	logger *WebSocketLogger,
) *Handler {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	return &Handler{
		auth:       auth,
		router:     router,
		authorizer: authorizer,
		messages:   messages,
		reads:      reads,
		limiter:    limiter,
		logger:     logger,
		opTimeout:  defaultOpTimeout,
	}
}

// Connect authenticates the request, upgrades it and serves the socket until
// it closes.
func (h *Handler) Connect(c *gin.Context) {
	identity, err := h.auth.Authenticate(extractToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.Unauthorized())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade_failed", identity.UserID, "", err)
		return
	}

	client := NewClient(conn, identity, h.logger)
	h.router.Registry().Register(client)
	h.logger.Info("connected", identity.UserID, client.ID())

	go client.writePump()
	client.readPump(h.dispatch, func(cl *Client) {
		h.router.Disconnect(cl.ID())
	})
}

func (h *Handler) dispatch(client *Client, raw []byte) {
	var frame wsdto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.replyError(client, "", fmt.Errorf("%w: expected {\"event\",\"data\"}", errBadFrame))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	var err error
	switch frame.Event {
	case wsdto.EventJoinConversation:
		err = h.handleJoin(ctx, client, frame.Data)
	case wsdto.EventLeaveConversation:
		err = h.handleLeave(client, frame.Data)
	case wsdto.EventNewMessage:
		err = h.handleNewMessage(ctx, client, frame.Data)
	case wsdto.EventMarkRead:
		err = h.handleMarkRead(ctx, client, frame.Data)
	case wsdto.EventPing:
		h.reply(client, wsdto.EventPong, nil)
	default:
		err = fmt.Errorf("%w: unknown event %q", errBadFrame, frame.Event)
	}
	if err != nil {
		h.replyError(client, frame.Event, err)
	}
}

func (h *Handler) handleJoin(ctx context.Context, client *Client, data json.RawMessage) error {
	convID, err := decodeConversationRef(data)
	if err != nil {
		return err
	}
	ok, err := h.authorizer.IsParty(ctx, convID, client.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return chat_errors.ErrForbidden
	}

	if !h.router.Registry().Join(client.ID(), convID) {
		return ErrUnknownConnection
	}
	h.logger.Info("joined", client.UserID(), client.ID(), zap.String("conversation_id", convID.String()))
	h.reply(client, wsdto.EventJoinedConversation, wsdto.ConversationRef{ConversationID: convID.String()})
	return nil
}

func (h *Handler) handleLeave(client *Client, data json.RawMessage) error {
	convID, err := decodeConversationRef(data)
	if err != nil {
		return err
	}
	h.router.Registry().Leave(client.ID(), convID)
	h.reply(client, wsdto.EventLeftConversation, wsdto.ConversationRef{ConversationID: convID.String()})
	return nil
}

func (h *Handler) handleNewMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	var req wsdto.NewMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %v", errBadFrame, err)
	}
	convID, err := parseConversationID(req.ConversationID)
	if err != nil {
		return err
	}

	var claimed conversation.Role
	if req.SenderType != "" {
		role, ok := conversation.ParseRole(req.SenderType)
		if !ok {
			return fmt.Errorf("%w: unknown senderType %q", chat_errors.ErrInvalidInput, req.SenderType)
		}
		claimed = role
	}

	identity := client.Identity()
	if (req.SenderName != "" && req.SenderName != identity.Name) || (req.SenderEmail != "" && req.SenderEmail != identity.Email) {
		h.logger.Warn("sender_claim_ignored", identity.UserID, client.ID(), zap.String("conversation_id", convID.String()))
	}

	if h.limiter != nil {
		result, err := h.limiter.AllowMessage(ctx, identity.UserID.String())
		if err != nil {
			return err
		}
		if !result.Allowed {
			return chat_errors.ErrRateLimited
		}
	}

	msg, err := h.messages.SendMessage(ctx, services.SendMessageInput{
		ConversationID:     convID,
		SenderID:           identity.UserID,
		SenderName:         identity.Name,
		SenderEmail:        identity.Email,
		ClaimedRole:        claimed,
		Content:            req.Content,
		Kind:               message.Kind(req.Kind),
		Metadata:           req.Metadata,
		OriginConnectionID: client.ID(),
	})
	if err != nil {
		return err
	}

	h.reply(client, wsdto.EventMessageReceived, wsdto.FromMessage(msg))
	return nil
}

func (h *Handler) handleMarkRead(ctx context.Context, client *Client, data json.RawMessage) error {
	convID, err := decodeConversationRef(data)
	if err != nil {
		return err
	}
	receipt, err := h.reads.MarkConversationReadBy(ctx, convID, client.UserID())
	if err != nil {
		return err
	}
	// room members already got the broadcast receipt
	if receipt.MessagesMarked == 0 || !h.router.Registry().IsMember(client.ID(), convID) {
		h.reply(client, wsdto.EventMessagesRead, wsdto.ReadPayload{
			ConversationID: convID.String(),
			ReaderRole:     receipt.ReaderRole,
			MessagesMarked: receipt.MessagesMarked,
			ReadAt:         receipt.ReadAt,
		})
	}
	return nil
}

func (h *Handler) reply(client *Client, event string, data interface{}) {
	payload, err := wsdto.Encode(event, data)
	if err != nil {
		h.logger.Error("encode_failed", client.UserID(), client.ID(), err, zap.String("reply", event))
		return
	}
	if err := h.router.SendTo(client.ID(), payload); err != nil {
		h.logger.Warn("reply_dropped", client.UserID(), client.ID(), zap.String("reply", event), zap.Error(err))
	}
}

// replyError reports a failure to the originating connection only.
func (h *Handler) replyError(client *Client, ref string, err error) {
	code := codeFromError(err)
	msg := err.Error()
	switch code {
	case wsdto.ErrCodeInternal, wsdto.ErrCodeStoreUnavailable:
		// details stay in the logs
		h.logger.Error("request_failed", client.UserID(), client.ID(), err, zap.String("ref", ref))
		msg = serverErrorMessages[code]
	}
	h.reply(client, wsdto.EventError, wsdto.ErrorPayload{
		Code:    code,
		Message: msg,
		Ref:     ref,
	})
}

func codeFromError(err error) string {
	switch {
	case errors.Is(err, errBadFrame):
		return wsdto.ErrCodeBadFrame
	case errors.Is(err, chat_errors.ErrInvalidInput):
		return wsdto.ErrCodeInvalidArgument
	case errors.Is(err, chat_errors.ErrNotFound):
		return wsdto.ErrCodeNotFound
	case errors.Is(err, chat_errors.ErrForbidden):
		return wsdto.ErrCodeForbidden
	case errors.Is(err, chat_errors.ErrRateLimited):
		return wsdto.ErrCodeRateLimited
	case errors.Is(err, chat_errors.ErrStoreUnavailable):
		return wsdto.ErrCodeStoreUnavailable
	default:
		return wsdto.ErrCodeInternal
	}
}

func decodeConversationRef(data json.RawMessage) (uuid.UUID, error) {
	var ref wsdto.ConversationRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errBadFrame, err)
	}
	return parseConversationID(ref.ConversationID)
}

func parseConversationID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: conversationId must be a uuid", chat_errors.ErrInvalidInput)
	}
	return id, nil
}

func extractToken(c *gin.Context) string {
	// Check query parameter
	if token := c.Query("token"); token != "" {
		return token
	}

	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return ""
}
