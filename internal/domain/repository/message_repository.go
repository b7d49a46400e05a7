package repository

import (
	"context"

	"bizconnect/internal/domain/entity"
)

type MessageRepository interface {
	// Append assigns the next sequence number, stores the message and updates the
	// conversation's last message and recipient unread counter as one atomic unit.
	Append(ctx context.Context, message *entity.Message) (*entity.Message, error)
	// ListMessages returns NotFound unless participantID is the conversation's user or business.
	ListMessages(ctx context.Context, conversationID, participantID string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkRead marks every unread message not sent by readerID as read and resets the
	// reader side's unread counter in the same atomic unit.
	MarkRead(ctx context.Context, conversationID, readerID string) (int, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int, error)
}

// ConversationStore is implemented by every persistence backend.
type ConversationStore interface {
	ConversationRepository
	MessageRepository
}
