package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wedding-chat/internal/redis"
	"wedding-chat/internal/services"
	"wedding-chat/internal/testutil"
	"wedding-chat/internal/transport/wsdto"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type denyLimiter struct{}

func (denyLimiter) AllowMessage(context.Context, string) (*redis.RateLimitResult, error) {
	return &redis.RateLimitResult{Allowed: false, Limit: 1, ResetIn: time.Minute}, nil
}

type wsEnv struct {
	db       *gorm.DB
	router   *Router
	handler  *Handler
	messages *services.MessageService
	url      string
}

func newWSEnv(t *testing.T, limiter MessageLimiter) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	router := NewRouter(NewRegistry(), nil)
	messages := services.NewMessageService(db, router, nil)
	reads := services.NewUnreadReconciler(db, router, nil)
	conversations := services.NewConversationService(db, reads, router, nil)
	h := NewHandler(services.NewAuthService(testutil.JWTSecret), router, conversations, messages, reads, limiter, nil)

	engine := gin.New()
	engine.GET("/ws", h.Connect)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	t.Cleanup(router.Shutdown)

	return &wsEnv{
		db:       db,
		router:   router,
		handler:  h,
		messages: messages,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (e *wsEnv) dial(t *testing.T, id services.Identity) *websocket.Conn {
	t.Helper()
	token := testutil.SignToken(t, testutil.JWTSecret, id)
	conn, resp, err := websocket.DefaultDialer.Dial(e.url+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	payload, err := wsdto.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func next(t *testing.T, conn *websocket.Conn) wsdto.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame wsdto.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func expectError(t *testing.T, conn *websocket.Conn, code string) wsdto.ErrorPayload {
	t.Helper()
	frame := next(t, conn)
	require.Equal(t, wsdto.EventError, frame.Event)
	var payload wsdto.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, code, payload.Code, payload.Message)
	return payload
}

func join(t *testing.T, conn *websocket.Conn, convID uuid.UUID) {
	t.Helper()
	send(t, conn, wsdto.EventJoinConversation, wsdto.ConversationRef{ConversationID: convID.String()})
	frame := next(t, conn)
	require.Equal(t, wsdto.EventJoinedConversation, frame.Event)
}

func TestHandler_MessageFlow(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)

	client := env.dial(t, services.Identity{UserID: conv.ClientID, Name: "Ana", Email: "ana@example.com"})
	provider := env.dial(t, services.Identity{UserID: conv.ProviderID, Name: "Villa Rosa"})
	join(t, client, conv.ID)
	join(t, provider, conv.ID)

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{
		ConversationID: conv.ID.String(),
		Content:        "Hello",
		SenderType:     "user",
		SenderName:     "Someone Else",
	})

	ack := next(t, client)
	require.Equal(t, wsdto.EventMessageReceived, ack.Event)
	var acked wsdto.MessagePayload
	require.NoError(t, json.Unmarshal(ack.Data, &acked))
	assert.Equal(t, int64(1), acked.Seq)
	assert.Equal(t, "Ana", acked.SenderName, "sender fields come from the token")
	assert.Equal(t, "client", acked.SenderType)

	pushed := next(t, provider)
	require.Equal(t, wsdto.EventNewMessage, pushed.Event)
	var msg wsdto.MessagePayload
	require.NoError(t, json.Unmarshal(pushed.Data, &msg))
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, acked.ID, msg.ID)

	// the sender's own socket is excluded, so the next frame it sees is pong
	send(t, client, wsdto.EventPing, nil)
	assert.Equal(t, wsdto.EventPong, next(t, client).Event)

	send(t, provider, wsdto.EventMarkRead, wsdto.ConversationRef{ConversationID: conv.ID.String()})
	for _, conn := range []*websocket.Conn{provider, client} {
		frame := next(t, conn)
		require.Equal(t, wsdto.EventMessagesRead, frame.Event)
		var read wsdto.ReadPayload
		require.NoError(t, json.Unmarshal(frame.Data, &read))
		assert.Equal(t, int64(1), read.MessagesMarked)
		assert.Equal(t, "provider", string(read.ReaderRole))
	}
}

func TestHandler_LeaveStopsDelivery(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)

	client := env.dial(t, services.Identity{UserID: conv.ClientID})
	provider := env.dial(t, services.Identity{UserID: conv.ProviderID})
	join(t, client, conv.ID)
	join(t, provider, conv.ID)

	send(t, provider, wsdto.EventLeaveConversation, wsdto.ConversationRef{ConversationID: conv.ID.String()})
	assert.Equal(t, wsdto.EventLeftConversation, next(t, provider).Event)

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "anyone?"})
	assert.Equal(t, wsdto.EventMessageReceived, next(t, client).Event)

	send(t, provider, wsdto.EventPing, nil)
	assert.Equal(t, wsdto.EventPong, next(t, provider).Event)
}

func TestHandler_Errors(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)
	client := env.dial(t, services.Identity{UserID: conv.ClientID})
	outsider := env.dial(t, services.Identity{UserID: uuid.New()})

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	expectError(t, client, wsdto.ErrCodeBadFrame)

	send(t, client, "dance", nil)
	expectError(t, client, wsdto.ErrCodeBadFrame)

	send(t, client, wsdto.EventJoinConversation, wsdto.ConversationRef{ConversationID: "nope"})
	expectError(t, client, wsdto.ErrCodeInvalidArgument)

	send(t, client, wsdto.EventJoinConversation, wsdto.ConversationRef{ConversationID: uuid.NewString()})
	expectError(t, client, wsdto.ErrCodeNotFound)

	send(t, outsider, wsdto.EventJoinConversation, wsdto.ConversationRef{ConversationID: conv.ID.String()})
	payload := expectError(t, outsider, wsdto.ErrCodeForbidden)
	assert.Equal(t, wsdto.EventJoinConversation, payload.Ref)
	assert.Zero(t, env.router.Registry().RoomSize(conv.ID))

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "  "})
	expectError(t, client, wsdto.ErrCodeInvalidArgument)

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "hi", SenderType: "provider"})
	expectError(t, client, wsdto.ErrCodeForbidden)

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "hi", SenderType: "robot"})
	expectError(t, client, wsdto.ErrCodeInvalidArgument)

	send(t, outsider, wsdto.EventMarkRead, wsdto.ConversationRef{ConversationID: conv.ID.String()})
	expectError(t, outsider, wsdto.ErrCodeForbidden)
}

func TestHandler_RateLimited(t *testing.T) {
	env := newWSEnv(t, denyLimiter{})
	conv := testutil.SeedConversation(t, env.db)
	client := env.dial(t, services.Identity{UserID: conv.ClientID})

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "hi"})
	expectError(t, client, wsdto.ErrCodeRateLimited)

	var count int64
	require.NoError(t, env.db.Table("messages").Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandler_LimiterDownIsStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(redis.Config{Host: mr.Host(), Port: mr.Port()})
	t.Cleanup(func() { _ = rc.Close() })

	env := newWSEnv(t, redis.NewRateLimiter(rc, redis.DefaultRateLimitConfig()))
	conv := testutil.SeedConversation(t, env.db)
	client := env.dial(t, services.Identity{UserID: conv.ClientID})
	mr.Close()

	send(t, client, wsdto.EventNewMessage, wsdto.NewMessageRequest{ConversationID: conv.ID.String(), Content: "hi"})
	payload := expectError(t, client, wsdto.ErrCodeStoreUnavailable)
	assert.Equal(t, wsdto.EventNewMessage, payload.Ref)
	assert.NotContains(t, payload.Message, "dial tcp")

	var count int64
	require.NoError(t, env.db.Table("messages").Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandler_SendWithoutOriginReachesSenderSockets(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)
	client := env.dial(t, services.Identity{UserID: conv.ClientID, Name: "Ana"})
	join(t, client, conv.ID)

	_, err := env.messages.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       conv.ClientID,
		SenderName:     "Ana",
		Content:        "sent from another device",
	})
	require.NoError(t, err)

	frame := next(t, client)
	require.Equal(t, wsdto.EventNewMessage, frame.Event)
	var msg wsdto.MessagePayload
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	assert.Equal(t, "sent from another device", msg.Content)
}

func TestHandler_JoinOnUnknownConnection(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)

	// never registered, as after Shutdown
	client := NewClient(nil, services.Identity{UserID: conv.ClientID}, nil)
	data, err := json.Marshal(wsdto.ConversationRef{ConversationID: conv.ID.String()})
	require.NoError(t, err)

	err = env.handler.handleJoin(context.Background(), client, data)
	assert.ErrorIs(t, err, ErrUnknownConnection)
	assert.Zero(t, env.router.Registry().RoomSize(conv.ID))

	frame, err := wsdto.Encode(wsdto.EventJoinConversation, wsdto.ConversationRef{ConversationID: conv.ID.String()})
	require.NoError(t, err)
	env.handler.dispatch(client, frame)
	assert.Empty(t, client.send, "nothing is acked to a connection the registry does not know")
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	env := newWSEnv(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(env.url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_DisconnectReleasesRooms(t *testing.T) {
	env := newWSEnv(t, nil)
	conv := testutil.SeedConversation(t, env.db)
	client := env.dial(t, services.Identity{UserID: conv.ClientID})
	join(t, client, conv.ID)
	require.Equal(t, 1, env.router.Registry().RoomSize(conv.ID))

	require.NoError(t, client.Close())

	assert.Eventually(t, func() bool {
		return env.router.Registry().RoomSize(conv.ID) == 0 && env.router.Registry().ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
