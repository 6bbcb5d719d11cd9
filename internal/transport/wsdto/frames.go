// Package wsdto defines the JSON frames exchanged over the realtime socket.
package wsdto

import (
	"encoding/json"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
)

const (
	EventJoinConversation    = "join-conversation"
	EventJoinedConversation  = "joined-conversation"
	EventLeaveConversation   = "leave-conversation"
	EventLeftConversation    = "left-conversation"
	EventNewMessage          = "new-message"
	EventMessageReceived     = "message-received"
	EventMarkRead            = "mark-read"
	EventMessagesRead        = "messages-read"
	EventConversationDeleted = "conversation-deleted"
	EventPing                = "ping"
	EventPong                = "pong"
	EventError               = "error"
)

// Frame is the envelope of every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, data interface{}) ([]byte, error) {
	frame := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}

type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

// NewMessageRequest is the client payload of new-message. Sender fields are
// accepted for compatibility and checked against the connection identity.
type NewMessageRequest struct {
	ConversationID string          `json:"conversationId"`
	Content        string          `json:"content"`
	SenderType     string          `json:"senderType,omitempty"`
	SenderName     string          `json:"senderName,omitempty"`
	SenderEmail    string          `json:"senderEmail,omitempty"`
	Kind           string          `json:"kind,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type MessagePayload struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Seq            int64           `json:"seq"`
	Content        string          `json:"content"`
	Kind           string          `json:"kind"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	SenderID       string          `json:"senderId"`
	SenderType     string          `json:"senderType"`
	SenderName     string          `json:"senderName"`
	SenderEmail    string          `json:"senderEmail"`
	CreatedAt      time.Time       `json:"createdAt"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
}

func FromMessage(m message.Message) MessagePayload {
	p := MessagePayload{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Seq:            m.Seq,
		Content:        m.Content,
		Kind:           string(m.Kind),
		SenderID:       m.SenderID.String(),
		SenderType:     string(m.SenderRole),
		SenderName:     m.SenderName,
		SenderEmail:    m.SenderEmail,
		CreatedAt:      m.CreatedAt,
		DeliveredAt:    m.DeliveredAt,
	}
	if len(m.Metadata) > 0 {
		p.Metadata = json.RawMessage(m.Metadata)
	}
	return p
}

type ReadPayload struct {
	ConversationID string            `json:"conversationId"`
	ReaderRole     conversation.Role `json:"readerRole"`
	MessagesMarked int64             `json:"messagesMarked"`
	ReadAt         time.Time         `json:"readAt"`
}

const (
	ErrCodeInvalidArgument  = "INVALID_ARGUMENT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBadFrame         = "BAD_FRAME"
	ErrCodeInternal         = "INTERNAL"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}
