package repository

import (
	"context"

	"bizconnect/internal/domain/entity"
)

// ConversationQuery narrows a conversation listing to one participant's inbox.
type ConversationQuery struct {
	ParticipantID string
	Side          entity.Side
	Filter        string // entity.ConversationFilter*
	Limit         int
	Offset        int
}

type ConversationRepository interface {
	FindByParticipants(ctx context.Context, userID, businessID string) (*entity.Conversation, error)
	// CreateOrGet returns the single conversation for the pair, creating it if needed.
	// created is false when another request created it first.
	CreateOrGet(ctx context.Context, userID, businessID string) (conv *entity.Conversation, created bool, err error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	List(ctx context.Context, query ConversationQuery) ([]*entity.Conversation, int64, error)
	SetArchived(ctx context.Context, id string, archived bool) error
	// Delete removes the conversation and every message still attached to it, including
	// messages appended after an earlier DeleteByConversation.
	Delete(ctx context.Context, id string) error
	// DeleteIfEmpty removes the conversation only if no message was ever appended to it.
	DeleteIfEmpty(ctx context.Context, id string) (bool, error)
}
