package httpdto

import (
	"encoding/json"
	"time"

	"wedding-chat/internal/domain/message"
)

type SendMessageRequest struct {
	Content  string          `json:"content"`
	Kind     string          `json:"kind,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type MessageDTO struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Seq            int64           `json:"seq"`
	SenderID       string          `json:"senderId"`
	SenderType     string          `json:"senderType"`
	SenderName     string          `json:"senderName"`
	SenderEmail    string          `json:"senderEmail"`
	Content        string          `json:"content"`
	Kind           string          `json:"kind"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time      `json:"readAt,omitempty"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	// NextAfterSeq is the cursor for the following page.
	NextAfterSeq int64 `json:"nextAfterSeq"`
}

type ReadReceiptDTO struct {
	ConversationID string    `json:"conversationId"`
	ReaderRole     string    `json:"readerRole"`
	MessagesMarked int64     `json:"messagesMarked"`
	ReadAt         time.Time `json:"readAt"`
}

func FromMessage(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Seq:            m.Seq,
		SenderID:       m.SenderID.String(),
		SenderType:     string(m.SenderRole),
		SenderName:     m.SenderName,
		SenderEmail:    m.SenderEmail,
		Content:        m.Content,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
	if len(m.Metadata) > 0 {
		dto.Metadata = json.RawMessage(m.Metadata)
	}
	return dto
}

func FromMessageSlice(items []message.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}

// RateLimitStatusDTO describes the caller's current message window.
type RateLimitStatusDTO struct {
	Allowed        bool  `json:"allowed"`
	Limit          int   `json:"limit"`
	Remaining      int   `json:"remaining"`
	ResetInSeconds int64 `json:"resetInSeconds"`
}
