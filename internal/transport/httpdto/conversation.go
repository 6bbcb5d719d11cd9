package httpdto

import (
	"time"

	"wedding-chat/internal/domain/conversation"
)

type CreateConversationRequest struct {
	ClientID     string `json:"clientId" binding:"required"`
	ProviderID   string `json:"providerId" binding:"required"`
	ProviderType string `json:"providerType" binding:"required"`
}

type LastMessageDTO struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderRole string    `json:"senderRole"`
	SentAt     time.Time `json:"sentAt"`
}

type UnreadCountDTO struct {
	Client   int `json:"client"`
	Provider int `json:"provider"`
}

type ConversationDTO struct {
	ID           string          `json:"id"`
	ClientID     string          `json:"clientId"`
	ProviderID   string          `json:"providerId"`
	ProviderType string          `json:"providerType"`
	LastMessage  *LastMessageDTO `json:"lastMessage"`
	UnreadCount  UnreadCountDTO  `json:"unreadCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int64             `json:"total"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:           c.ID.String(),
		ClientID:     c.ClientID.String(),
		ProviderID:   c.ProviderID.String(),
		ProviderType: string(c.ProviderType),
		UnreadCount:  UnreadCountDTO{Client: c.Unread.Client, Provider: c.Unread.Provider},
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if lm := c.LastMessage; !lm.Empty() {
		last := &LastMessageDTO{ID: lm.MessageID.String()}
		if lm.Content != nil {
			last.Content = *lm.Content
		}
		if lm.SenderRole != nil {
			last.SenderRole = string(*lm.SenderRole)
		}
		if lm.SentAt != nil {
			last.SentAt = *lm.SentAt
		}
		dto.LastMessage = last
	}
	return dto
}

func FromConversationSlice(items []conversation.Conversation) []ConversationDTO {
	out := make([]ConversationDTO, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}
