package message

import (
	"time"

	"wedding-chat/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindText    Kind = "text"
	KindQuote   Kind = "quote"
	KindBooking Kind = "booking"
	KindSystem  Kind = "system"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindQuote, KindBooking, KindSystem:
		return true
	}
	return false
}

// Message represents the messages table. Rows are immutable except for the
// delivery and read stamps.
type Message struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Seq            int64             `gorm:"not null;uniqueIndex:idx_messages_conversation_seq,priority:2"`
	SenderID       uuid.UUID         `gorm:"type:uuid;not null"`
	SenderRole     conversation.Role `gorm:"size:16;not null;index"`
	SenderName     string            `gorm:"size:255"`
	SenderEmail    string            `gorm:"size:255"`
	Content        string            `gorm:"type:text;not null"`
	Kind           Kind              `gorm:"size:32;not null"`
	Metadata       datatypes.JSON
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time
}

func (Message) TableName() string {
	return "messages"
}
