package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role is the side of a conversation a participant speaks for.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider
}

// Opposite returns the recipient role for a message sent by r.
func (r Role) Opposite() Role {
	if r == RoleClient {
		return RoleProvider
	}
	return RoleClient
}

// ParseRole accepts the role names used by clients, including the provider
// kinds that older clients send as senderType.
func ParseRole(s string) (Role, bool) {
	switch s {
	case string(RoleClient), "user", "couple":
		return RoleClient, true
	case string(RoleProvider), string(ProviderEstablishment), string(ProviderPartner):
		return RoleProvider, true
	}
	return "", false
}

// ProviderType distinguishes venues from service partners.
type ProviderType string

const (
	ProviderEstablishment ProviderType = "establishment"
	ProviderPartner       ProviderType = "partner"
)

func (p ProviderType) Valid() bool {
	return p == ProviderEstablishment || p == ProviderPartner
}

// LastMessage mirrors the most recently persisted message of a conversation.
type LastMessage struct {
	MessageID  *uuid.UUID `gorm:"column:id;type:uuid"`
	Content    *string    `gorm:"type:text"`
	SenderRole *Role      `gorm:"size:16"`
	SentAt     *time.Time
}

func (l LastMessage) Empty() bool {
	return l.MessageID == nil
}

// UnreadCounts holds per-role counts of messages from the other side that
// have not been read yet.
type UnreadCounts struct {
	Client   int `gorm:"not null;default:0"`
	Provider int `gorm:"not null;default:0"`
}

func (u UnreadCounts) For(role Role) int {
	if role == RoleClient {
		return u.Client
	}
	return u.Provider
}

// Conversation represents the conversations table
type Conversation struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	ClientID     uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:1"`
	ProviderID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:2;index"`
	ProviderType ProviderType `gorm:"size:32;not null"`
	LastMessage  LastMessage  `gorm:"embedded;embeddedPrefix:last_message_"`
	Unread       UnreadCounts `gorm:"embedded;embeddedPrefix:unread_"`
	LastSeq      int64        `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// RoleOf reports which side userID speaks for in the conversation.
func (c Conversation) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case uuid.Nil:
		return "", false
	case c.ClientID:
		return RoleClient, true
	case c.ProviderID:
		return RoleProvider, true
	}
	return "", false
}

func (c Conversation) IsParty(userID uuid.UUID) bool {
	_, ok := c.RoleOf(userID)
	return ok
}

// UnreadColumn is the column holding the unread counter of role.
func UnreadColumn(role Role) string {
	if role == RoleClient {
		return "unread_client"
	}
	return "unread_provider"
}
