package services_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/services"
	"wedding-chat/internal/testutil"
	"wedding-chat/internal/transport/wsdto"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMessageService(t *testing.T) (*services.MessageService, *testutil.RecordingBroadcaster, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	b := &testutil.RecordingBroadcaster{}
	return services.NewMessageService(db, b, nil), b, db
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) conversation.Conversation {
	t.Helper()
	c, err := repository.NewConversationRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestSendMessage_ClientToProvider(t *testing.T) {
	svc, b, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	msg, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID:     conv.ID,
		SenderID:           conv.ClientID,
		SenderName:         "Ana",
		SenderEmail:        "ana@example.com",
		Content:            "Hello",
		OriginConnectionID: "conn-client",
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.RoleClient, msg.SenderRole)
	assert.Equal(t, int64(1), msg.Seq)
	assert.Equal(t, message.KindText, msg.Kind)
	assert.NotNil(t, msg.DeliveredAt)

	stored := reload(t, db, conv.ID)
	assert.Equal(t, 1, stored.Unread.Provider)
	assert.Equal(t, 0, stored.Unread.Client)
	require.False(t, stored.LastMessage.Empty())
	assert.Equal(t, "Hello", *stored.LastMessage.Content)
	assert.Equal(t, msg.ID, *stored.LastMessage.MessageID)
	assert.Equal(t, conversation.RoleClient, *stored.LastMessage.SenderRole)
	assert.Equal(t, int64(1), stored.LastSeq)

	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, conv.ID, calls[0].ConversationID)
	assert.Equal(t, "conn-client", calls[0].ExcludeConnID)
	assert.Equal(t, wsdto.EventNewMessage, calls[0].Event)

	var payload wsdto.MessagePayload
	require.NoError(t, json.Unmarshal(calls[0].Data, &payload))
	assert.Equal(t, "Hello", payload.Content)
	assert.Equal(t, "client", payload.SenderType)
	assert.Equal(t, "Ana", payload.SenderName)
}

func TestSendMessage_EachMessageIncrementsRecipientCounter(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		_, err := svc.SendMessage(ctx, services.SendMessageInput{
			ConversationID: conv.ID, SenderID: conv.ClientID, Content: content,
		})
		require.NoError(t, err)
	}
	reply, err := svc.SendMessage(ctx, services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ProviderID, Content: "reply",
		ClaimedRole: conversation.RoleProvider,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), reply.Seq)

	stored := reload(t, db, conv.ID)
	assert.Equal(t, 2, stored.Unread.Provider)
	assert.Equal(t, 1, stored.Unread.Client)
	assert.Equal(t, "reply", *stored.LastMessage.Content)

	msgs, err := svc.ListMessages(ctx, conv.ID, conv.ClientID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "reply"},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestSendMessage_RejectsInvalidInputWithoutSideEffects(t *testing.T) {
	svc, b, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	cases := map[string]services.SendMessageInput{
		"empty content":           {ConversationID: conv.ID, SenderID: conv.ClientID, Content: ""},
		"whitespace content":      {ConversationID: conv.ID, SenderID: conv.ClientID, Content: "   \n"},
		"missing conversation id": {SenderID: conv.ClientID, Content: "hi"},
		"too long": {ConversationID: conv.ID, SenderID: conv.ClientID,
			Content: strings.Repeat("é", services.MaxContentLength+1)},
		"unknown kind":    {ConversationID: conv.ID, SenderID: conv.ClientID, Content: "hi", Kind: "video"},
		"broken metadata": {ConversationID: conv.ID, SenderID: conv.ClientID, Content: "hi", Metadata: json.RawMessage(`{`)},
		"unknown role":    {ConversationID: conv.ID, SenderID: conv.ClientID, Content: "hi", ClaimedRole: "admin"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SendMessage(context.Background(), in)
			assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
		})
	}

	var count int64
	require.NoError(t, db.Model(&message.Message{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, b.Calls())
	stored := reload(t, db, conv.ID)
	assert.Zero(t, stored.Unread.Provider)
	assert.True(t, stored.LastMessage.Empty())
}

func TestSendMessage_ContentAtLimitIsAccepted(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	_, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ClientID,
		Content: strings.Repeat("a", services.MaxContentLength),
	})
	assert.NoError(t, err)
}

func TestSendMessage_KeepsContentAsSent(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	content := "    indented\n"
	msg, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ClientID, Content: content,
	})
	require.NoError(t, err)
	assert.Equal(t, content, msg.Content)

	stored := reload(t, db, conv.ID)
	require.False(t, stored.LastMessage.Empty())
	assert.Equal(t, content, *stored.LastMessage.Content)

	// padding does not count against the limit
	_, err = svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ClientID,
		Content: " " + strings.Repeat("a", services.MaxContentLength) + " ",
	})
	assert.NoError(t, err)
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	svc, b, _ := newMessageService(t)

	_, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: uuid.New(), SenderID: uuid.New(), Content: "hi",
	})
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
	assert.Empty(t, b.Calls())
}

func TestSendMessage_Forbidden(t *testing.T) {
	svc, b, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	t.Run("outsider", func(t *testing.T) {
		_, err := svc.SendMessage(context.Background(), services.SendMessageInput{
			ConversationID: conv.ID, SenderID: uuid.New(), Content: "hi",
		})
		assert.ErrorIs(t, err, chat_errors.ErrForbidden)
	})

	t.Run("claimed role does not match", func(t *testing.T) {
		_, err := svc.SendMessage(context.Background(), services.SendMessageInput{
			ConversationID: conv.ID, SenderID: conv.ClientID, Content: "hi",
			ClaimedRole: conversation.RoleProvider,
		})
		assert.ErrorIs(t, err, chat_errors.ErrForbidden)
	})

	assert.Empty(t, b.Calls())
	assert.Zero(t, reload(t, db, conv.ID).LastSeq)
}

func TestSendMessage_BroadcastFailureDoesNotFailSend(t *testing.T) {
	db := testutil.NewTestDB(t)
	b := &testutil.RecordingBroadcaster{Panic: true}
	svc := services.NewMessageService(db, b, nil)
	conv := testutil.SeedConversation(t, db)

	msg, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ProviderID, Content: "still saved",
	})
	require.NoError(t, err)
	assert.Len(t, b.Calls(), 1)

	stored, err := repository.NewMessageRepository(db).GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "still saved", stored.Content)
}

func TestSendMessage_CancelledCallerStillBroadcasts(t *testing.T) {
	svc, b, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.SendMessage(ctx, services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ClientID, Content: "hi",
	})
	cancel()
	require.NoError(t, err)
	assert.Len(t, b.Calls(), 1)
}

func TestSendMessage_ConcurrentSendersKeepEveryIncrement(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(context.Background(), services.SendMessageInput{
				ConversationID: conv.ID, SenderID: conv.ClientID, Content: "ping",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := reload(t, db, conv.ID)
	assert.Equal(t, n, stored.Unread.Provider)
	assert.Equal(t, int64(n), stored.LastSeq)

	msgs, err := svc.ListMessages(context.Background(), conv.ID, conv.ProviderID, 0, 100)
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestSendMessage_StoresMetadata(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)

	msg, err := svc.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: conv.ID, SenderID: conv.ProviderID, Content: "Quote attached",
		Kind: message.KindQuote, Metadata: json.RawMessage(`{"amount":1500,"currency":"EUR"}`),
	})
	require.NoError(t, err)

	stored, err := repository.NewMessageRepository(db).GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, message.KindQuote, stored.Kind)
	assert.JSONEq(t, `{"amount":1500,"currency":"EUR"}`, string(stored.Metadata))
}

func TestListMessages(t *testing.T) {
	svc, _, db := newMessageService(t)
	conv := testutil.SeedConversation(t, db)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		_, err := svc.SendMessage(ctx, services.SendMessageInput{ConversationID: conv.ID, SenderID: conv.ClientID, Content: c})
		require.NoError(t, err)
	}

	msgs, err := svc.ListMessages(ctx, conv.ID, conv.ProviderID, 1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)

	_, err = svc.ListMessages(ctx, conv.ID, uuid.New(), 0, 10)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	_, err = svc.ListMessages(ctx, uuid.New(), conv.ClientID, 0, 10)
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}
