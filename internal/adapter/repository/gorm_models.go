package repository

import (
	"time"

	"gorm.io/gorm"

	"bizconnect/internal/domain/entity"
)

type conversationRecord struct {
	ID                  string `gorm:"primaryKey;size:64"`
	BusinessID          string `gorm:"size:128;not null;uniqueIndex:idx_conversation_pair,priority:1"`
	UserID              string `gorm:"size:128;not null;uniqueIndex:idx_conversation_pair,priority:2;index"`
	LastMessageID       string `gorm:"size:64"`
	LastMessageSenderID string `gorm:"size:128"`
	LastMessagePreview  string `gorm:"size:512"`
	LastMessageSeq      int64
	LastMessageAt       *time.Time
	LastSeq             int64     `gorm:"not null;default:0"`
	UnreadCount         int       `gorm:"not null;default:0"`
	BusinessUnreadCount int       `gorm:"not null;default:0"`
	Archived            bool      `gorm:"not null;default:false;index"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null;index"`
}

func (conversationRecord) TableName() string { return "conversations" }

func (r *conversationRecord) toEntity() *entity.Conversation {
	conv := &entity.Conversation{
		ID:                  r.ID,
		BusinessID:          r.BusinessID,
		UserID:              r.UserID,
		LastSeq:             r.LastSeq,
		UnreadCount:         r.UnreadCount,
		BusinessUnreadCount: r.BusinessUnreadCount,
		Archived:            r.Archived,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.LastMessageID != "" && r.LastMessageAt != nil {
		conv.LastMessage = &entity.LastMessage{
			ID:       r.LastMessageID,
			SenderID: r.LastMessageSenderID,
			Preview:  r.LastMessagePreview,
			Seq:      r.LastMessageSeq,
			SentAt:   r.LastMessageAt.UTC(),
		}
	}
	return conv
}

type messageRecord struct {
	ID             string              `gorm:"primaryKey;size:64"`
	ConversationID string              `gorm:"size:64;not null;uniqueIndex:idx_message_seq,priority:1"`
	Seq            int64               `gorm:"not null;uniqueIndex:idx_message_seq,priority:2"`
	SenderID       string              `gorm:"size:128;not null"`
	Content        string              `gorm:"type:text;not null"`
	Attachments    []entity.Attachment `gorm:"serializer:json"`
	Read           bool                `gorm:"column:is_read;not null;default:false"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}

func (messageRecord) TableName() string { return "messages" }

func newMessageRecord(msg *entity.Message) *messageRecord {
	return &messageRecord{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Seq:            msg.Seq,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Attachments:    msg.Attachments,
		Read:           msg.Read,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func (r *messageRecord) toEntity() *entity.Message {
	msg := &entity.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Seq:            r.Seq,
		SenderID:       r.SenderID,
		Content:        r.Content,
		Attachments:    r.Attachments,
		Read:           r.Read,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.ReadAt != nil {
		readAt := r.ReadAt.UTC()
		msg.ReadAt = &readAt
	}
	return msg
}

type businessRecord struct {
	ID        string `gorm:"primaryKey;size:128"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (businessRecord) TableName() string { return "businesses" }

// MigrateGorm creates or updates the messaging tables.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&conversationRecord{}, &messageRecord{}, &businessRecord{})
}
