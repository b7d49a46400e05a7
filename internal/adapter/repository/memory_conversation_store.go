package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
	"bizconnect/pkg/errors"
)

type MemoryOption func(*memoryConversationStore)

// WithClock overrides the time source used for createdAt/updatedAt stamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryConversationStore) {
		s.now = now
	}
}

type memoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	byPair        map[string]string
	messages      map[string][]*entity.Message
	now           func() time.Time
}

// NewMemoryConversationStore keeps conversations and messages in process memory.
// Every operation runs under a single lock.
func NewMemoryConversationStore(opts ...MemoryOption) repository.ConversationStore {
	s := &memoryConversationStore{
		conversations: make(map[string]*entity.Conversation),
		byPair:        make(map[string]string),
		messages:      make(map[string][]*entity.Message),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pairKey(userID, businessID string) string {
	return businessID + "\x00" + userID
}

func (s *memoryConversationStore) FindByParticipants(ctx context.Context, userID, businessID string) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey(userID, businessID)]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return cloneConversation(s.conversations[id]), nil
}

func (s *memoryConversationStore) CreateOrGet(ctx context.Context, userID, businessID string) (*entity.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(userID, businessID)
	if id, ok := s.byPair[key]; ok {
		return cloneConversation(s.conversations[id]), false, nil
	}

	now := s.now().UTC()
	conv := &entity.Conversation{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.conversations[conv.ID] = conv
	s.byPair[key] = conv.ID
	return cloneConversation(conv), true, nil
}

func (s *memoryConversationStore) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return cloneConversation(conv), nil
}

func (s *memoryConversationStore) List(ctx context.Context, query repository.ConversationQuery) ([]*entity.Conversation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.RLock()
	var matched []*entity.Conversation
	for _, conv := range s.conversations {
		if matchesQuery(conv, query) {
			matched = append(matched, cloneConversation(conv))
		}
	}
	s.mu.RUnlock()

	sortConversations(matched)

	total := int64(len(matched))
	return pageOf(matched, query.Limit, query.Offset), total, nil
}

func (s *memoryConversationStore) SetArchived(ctx context.Context, id string, archived bool) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	conv.Archived = archived
	conv.UpdatedAt = s.now().UTC()
	return nil
}

func (s *memoryConversationStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	s.removeLocked(conv)
	return nil
}

func (s *memoryConversationStore) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.LastSeq > 0 {
		return false, nil
	}
	s.removeLocked(conv)
	return true, nil
}

func (s *memoryConversationStore) removeLocked(conv *entity.Conversation) {
	delete(s.conversations, conv.ID)
	delete(s.byPair, pairKey(conv.UserID, conv.BusinessID))
	delete(s.messages, conv.ID)
}

func (s *memoryConversationStore) Append(ctx context.Context, message *entity.Message) (*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[message.ConversationID]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	if !conv.HasParticipant(message.SenderID) {
		return nil, errors.Forbidden("Sender is not a participant of this conversation", nil)
	}

	stored := *message
	stored.ID = uuid.New().String()
	stored.Seq = conv.LastSeq + 1
	stored.Read = false
	stored.ReadAt = nil
	stored.CreatedAt = s.now().UTC()
	stored.Attachments = append([]entity.Attachment(nil), message.Attachments...)

	s.messages[conv.ID] = append(s.messages[conv.ID], &stored)
	conv.ApplyMessage(&stored)

	return cloneMessage(&stored), nil
}

func (s *memoryConversationStore) ListMessages(ctx context.Context, conversationID, participantID string, limit, offset int) ([]*entity.Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || !conv.HasParticipant(participantID) {
		return nil, 0, errors.NotFound("Conversation", nil)
	}

	all := s.messages[conversationID]
	total := int64(len(all))
	page := pageOf(all, limit, offset)
	out := make([]*entity.Message, 0, len(page))
	for _, msg := range page {
		out = append(out, cloneMessage(msg))
	}
	return out, total, nil
}

func (s *memoryConversationStore) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return 0, errors.NotFound("Conversation", nil)
	}
	side, ok := conv.SideOf(readerID)
	if !ok {
		return 0, errors.Forbidden("Reader is not a participant of this conversation", nil)
	}

	now := s.now().UTC()
	marked := 0
	for _, msg := range s.messages[conversationID] {
		if msg.Read || msg.SenderID == readerID {
			continue
		}
		readAt := now
		msg.Read = true
		msg.ReadAt = &readAt
		marked++
	}
	conv.ResetUnread(side)
	conv.UpdatedAt = now
	return marked, nil
}

func (s *memoryConversationStore) DeleteByConversation(ctx context.Context, conversationID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Unavailable("Conversation store unavailable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := len(s.messages[conversationID])
	delete(s.messages, conversationID)
	return deleted, nil
}

func matchesQuery(conv *entity.Conversation, query repository.ConversationQuery) bool {
	switch query.Side {
	case entity.SideBusiness:
		if conv.BusinessID != query.ParticipantID {
			return false
		}
	default:
		if conv.UserID != query.ParticipantID {
			return false
		}
	}

	switch query.Filter {
	case entity.ConversationFilterArchived:
		return conv.Archived
	case entity.ConversationFilterUnread:
		return !conv.Archived && conv.UnreadFor(sideOrUser(query.Side)) > 0
	default:
		return !conv.Archived
	}
}

func sideOrUser(side entity.Side) entity.Side {
	if side == "" {
		return entity.SideUser
	}
	return side
}

// sortConversations orders by most recent activity, then by id for stable paging.
func sortConversations(convs []*entity.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func cloneConversation(conv *entity.Conversation) *entity.Conversation {
	if conv == nil {
		return nil
	}
	out := *conv
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		out.LastMessage = &last
	}
	return &out
}

func cloneMessage(msg *entity.Message) *entity.Message {
	out := *msg
	out.Attachments = append([]entity.Attachment(nil), msg.Attachments...)
	if msg.ReadAt != nil {
		readAt := *msg.ReadAt
		out.ReadAt = &readAt
	}
	return &out
}
