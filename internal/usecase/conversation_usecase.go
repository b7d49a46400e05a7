package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
	"bizconnect/internal/domain/service"
	"bizconnect/internal/infrastructure/events"
	"bizconnect/internal/infrastructure/metrics"
	"bizconnect/internal/infrastructure/ratelimit"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
	"bizconnect/pkg/utils"
)

const (
	MaxInitialMessageLength  = 1000
	MaxAttachmentsPerMessage = 10

	compensationTimeout = 5 * time.Second
)

// EventPublisher receives every stored message. Implementations must not block the caller
// on delivery and must not fail it.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, conv *entity.Conversation, msg *entity.Message)
}

type ConversationUseCase struct {
	store        repository.ConversationStore
	businessRepo repository.BusinessRepository
	rateLimiter  ratelimit.Limiter
	publisher    EventPublisher
	metrics      *metrics.Metrics
}

// NewConversationUseCase wires the messaging service. businessRepo may be nil, in which
// case business ids are not checked against a directory.
func NewConversationUseCase(
	store repository.ConversationStore,
	businessRepo repository.BusinessRepository,
	rateLimiter ratelimit.Limiter,
	publisher EventPublisher,
	m *metrics.Metrics,
) *ConversationUseCase {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ConversationUseCase{
		store:        store,
		businessRepo: businessRepo,
		rateLimiter:  rateLimiter,
		publisher:    publisher,
		metrics:      m,
	}
}

type StartConversationInput struct {
	BusinessID     string
	InitialMessage string
	Attachments    []entity.Attachment
}

type StartConversationResult struct {
	Conversation *entity.Conversation `json:"conversation"`
	Message      *entity.Message      `json:"message"`
	Created      bool                 `json:"created"`
}

type SendMessageInput struct {
	Content     string
	Attachments []entity.Attachment
}

type ConversationResponse struct {
	*entity.Conversation
	OtherParticipantID string `json:"other_participant_id"`
	State              string `json:"state"`
	Unread             int    `json:"unread"`
}

func newConversationResponse(conv *entity.Conversation, viewerID string) *ConversationResponse {
	side, _ := conv.SideOf(viewerID)
	return &ConversationResponse{
		Conversation:       conv,
		OtherParticipantID: conv.OtherParticipant(viewerID),
		State:              conv.State(),
		Unread:             conv.UnreadFor(side),
	}
}

func (uc *ConversationUseCase) StartConversation(ctx context.Context, principal entity.Principal, input StartConversationInput) (*StartConversationResult, error) {
	businessID := strings.TrimSpace(input.BusinessID)
	if businessID == "" {
		return nil, errors.BadRequest("Business ID is required", nil)
	}

	trimmed := strings.TrimSpace(input.InitialMessage)
	if trimmed == "" {
		return nil, errors.BadRequest("Initial message is required", nil)
	}
	if utf8.RuneCountInString(trimmed) > MaxInitialMessageLength {
		return nil, errors.BadRequest("Initial message must be at most 1000 characters", nil)
	}

	if businessID == principal.UserID || (principal.ActsAsBusiness() && principal.BusinessID == businessID) {
		return nil, errors.BadRequest("You cannot start a conversation with your own business", nil)
	}

	content, err := service.SanitizeAndValidate(trimmed)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	attachments, err := normalizeAttachments(principal.UserID, input.Attachments)
	if err != nil {
		return nil, err
	}

	if uc.businessRepo != nil {
		exists, err := uc.businessRepo.Exists(ctx, businessID)
		if err != nil {
			logger.Error("StartConversation Error: business lookup %s: %v", businessID, err)
			return nil, uc.storeFailure("business_lookup", err)
		}
		if !exists {
			return nil, errors.NotFound("Business", nil)
		}
	}

	if err := uc.admit(ctx, principal.UserID); err != nil {
		return nil, err
	}

	conv, created, err := uc.store.CreateOrGet(ctx, principal.UserID, businessID)
	if err != nil {
		logger.Error("StartConversation Error: resolve conversation user=%s business=%s: %v", principal.UserID, businessID, err)
		return nil, uc.storeFailure("create_conversation", err)
	}

	msg, err := uc.store.Append(ctx, &entity.Message{
		ConversationID: conv.ID,
		SenderID:       principal.UserID,
		Content:        content,
		Attachments:    attachments,
	})
	if err != nil {
		logger.Error("StartConversation Error: append initial message to %s: %v", conv.ID, err)
		if created {
			uc.compensateEmptyConversation(ctx, conv.ID)
		}
		return nil, uc.storeFailure("append_message", err)
	}

	conv.ApplyMessage(msg)
	if created {
		uc.metrics.IncConversationsStarted()
	}
	uc.metrics.IncMessagesSent(string(entity.SideUser))
	uc.publisher.PublishMessageSent(ctx, conv, msg)

	return &StartConversationResult{
		Conversation: conv,
		Message:      msg,
		Created:      created,
	}, nil
}

// compensateEmptyConversation removes a conversation this request created when its
// initial message could not be stored. It runs even if the request context is done.
func (uc *ConversationUseCase) compensateEmptyConversation(ctx context.Context, conversationID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	deleted, err := uc.store.DeleteIfEmpty(ctx, conversationID)
	if err != nil {
		logger.Error("StartConversation Error: inconsistent state, empty conversation %s left behind: %v", conversationID, err)
		uc.metrics.IncStoreError("compensate")
		return
	}
	if deleted {
		logger.Warn("StartConversation: removed empty conversation %s after failed append", conversationID)
	}
}

func (uc *ConversationUseCase) SendMessage(ctx context.Context, principal entity.Principal, conversationID string, input SendMessageInput) (*entity.Message, error) {
	conv, err := uc.getConversation(ctx, "SendMessage", conversationID)
	if err != nil {
		return nil, err
	}

	senderID, side, ok := participantFor(conv, principal)
	if !ok {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}

	content, err := service.SanitizeAndValidate(input.Content)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	attachments, err := normalizeAttachments(senderID, input.Attachments)
	if err != nil {
		return nil, err
	}

	if err := uc.admit(ctx, principal.UserID); err != nil {
		return nil, err
	}

	msg, err := uc.store.Append(ctx, &entity.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
	})
	if err != nil {
		logger.Error("SendMessage Error: append to %s: %v", conv.ID, err)
		return nil, uc.storeFailure("append_message", err)
	}

	conv.ApplyMessage(msg)
	uc.metrics.IncMessagesSent(string(side))
	uc.publisher.PublishMessageSent(ctx, conv, msg)

	return msg, nil
}

func (uc *ConversationUseCase) GetConversations(ctx context.Context, userID, filter string, page, limit int) ([]*ConversationResponse, utils.Pagination, error) {
	return uc.listConversations(ctx, "GetConversations", userID, entity.SideUser, filter, page, limit)
}

func (uc *ConversationUseCase) GetBusinessConversations(ctx context.Context, principal entity.Principal, filter string, page, limit int) ([]*ConversationResponse, utils.Pagination, error) {
	if !principal.ActsAsBusiness() {
		return nil, utils.Pagination{}, errors.Forbidden("Business account required", nil)
	}
	return uc.listConversations(ctx, "GetBusinessConversations", principal.BusinessID, entity.SideBusiness, filter, page, limit)
}

func (uc *ConversationUseCase) listConversations(ctx context.Context, op, participantID string, side entity.Side, filter string, page, limit int) ([]*ConversationResponse, utils.Pagination, error) {
	if filter == "" {
		filter = entity.ConversationFilterAll
	}
	if !entity.IsValidConversationFilter(filter) {
		return nil, utils.Pagination{}, errors.BadRequest("Filter must be one of all, unread, archived", nil)
	}

	params := utils.NormalizePagination(page, limit)
	convs, total, err := uc.store.List(ctx, repository.ConversationQuery{
		ParticipantID: participantID,
		Side:          side,
		Filter:        filter,
		Limit:         params.PageSize,
		Offset:        params.Offset,
	})
	if err != nil {
		logger.Error("%s Error: list for %s: %v", op, participantID, err)
		return nil, utils.Pagination{}, uc.storeFailure("list_conversations", err)
	}

	out := make([]*ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, newConversationResponse(conv, participantID))
	}
	return out, utils.NewPagination(params.Page, params.PageSize, total), nil
}

func (uc *ConversationUseCase) GetMessages(ctx context.Context, principal entity.Principal, conversationID string, page, limit int) ([]*entity.Message, utils.Pagination, error) {
	conv, err := uc.getConversation(ctx, "GetMessages", conversationID)
	if err != nil {
		return nil, utils.Pagination{}, err
	}

	participantID, _, ok := participantFor(conv, principal)
	if !ok {
		return nil, utils.Pagination{}, errors.NotFound("Conversation", nil)
	}

	params := utils.NormalizePagination(page, limit)
	messages, total, err := uc.store.ListMessages(ctx, conv.ID, participantID, params.PageSize, params.Offset)
	if err != nil {
		if !errors.Is(err, errors.CodeNotFound) {
			logger.Error("GetMessages Error: list %s: %v", conv.ID, err)
		}
		return nil, utils.Pagination{}, uc.storeFailure("list_messages", err)
	}

	return messages, utils.NewPagination(params.Page, params.PageSize, total), nil
}

func (uc *ConversationUseCase) MarkMessagesAsRead(ctx context.Context, userID, conversationID string) (int, error) {
	conv, err := uc.ownedConversation(ctx, "MarkMessagesAsRead", userID, conversationID)
	if err != nil {
		return 0, err
	}
	return uc.markRead(ctx, "MarkMessagesAsRead", conv.ID, userID)
}

func (uc *ConversationUseCase) MarkBusinessMessagesAsRead(ctx context.Context, principal entity.Principal, conversationID string) (int, error) {
	if !principal.ActsAsBusiness() {
		return 0, errors.Forbidden("Business account required", nil)
	}

	conv, err := uc.getConversation(ctx, "MarkBusinessMessagesAsRead", conversationID)
	if err != nil {
		return 0, err
	}
	if conv.BusinessID != principal.BusinessID {
		logger.Warn("MarkBusinessMessagesAsRead: business %s is not part of conversation %s", principal.BusinessID, conv.ID)
		return 0, errors.Forbidden("You do not have access to this conversation", nil)
	}
	return uc.markRead(ctx, "MarkBusinessMessagesAsRead", conv.ID, conv.BusinessID)
}

func (uc *ConversationUseCase) markRead(ctx context.Context, op, conversationID, readerID string) (int, error) {
	marked, err := uc.store.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		logger.Error("%s Error: conversation %s reader %s: %v", op, conversationID, readerID, err)
		return 0, uc.storeFailure("mark_read", err)
	}
	return marked, nil
}

func (uc *ConversationUseCase) ArchiveConversation(ctx context.Context, userID, conversationID string) error {
	return uc.setArchived(ctx, "ArchiveConversation", userID, conversationID, true)
}

func (uc *ConversationUseCase) UnarchiveConversation(ctx context.Context, userID, conversationID string) error {
	return uc.setArchived(ctx, "UnarchiveConversation", userID, conversationID, false)
}

func (uc *ConversationUseCase) setArchived(ctx context.Context, op, userID, conversationID string, archived bool) error {
	conv, err := uc.ownedConversation(ctx, op, userID, conversationID)
	if err != nil {
		return err
	}
	if err := uc.store.SetArchived(ctx, conv.ID, archived); err != nil {
		logger.Error("%s Error: conversation %s: %v", op, conv.ID, err)
		return uc.storeFailure("archive", err)
	}
	return nil
}

// DeleteConversation removes the messages first, then the conversation. A failure between
// the two steps is reported as INCONSISTENT_STATE; calling it again finishes the job.
func (uc *ConversationUseCase) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.ownedConversation(ctx, "DeleteConversation", userID, conversationID)
	if err != nil {
		return err
	}

	removed, err := uc.store.DeleteByConversation(ctx, conv.ID)
	if err != nil {
		logger.Error("DeleteConversation Error: delete messages of %s after %d removed: %v", conv.ID, removed, err)
		return uc.storeFailure("delete_messages", err)
	}

	if err := uc.store.Delete(ctx, conv.ID); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil
		}
		logger.Error("DeleteConversation Error: inconsistent state, %d messages of %s removed but conversation remains: %v", removed, conv.ID, err)
		uc.metrics.IncStoreError("delete_conversation")
		return errors.Inconsistent("Conversation messages were deleted but the conversation could not be removed; retry the delete", err)
	}

	logger.Info("DeleteConversation: conversation %s deleted with %d messages", conv.ID, removed)
	return nil
}

func (uc *ConversationUseCase) getConversation(ctx context.Context, op, conversationID string) (*entity.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, errors.BadRequest("Conversation ID is required", nil)
	}
	conv, err := uc.store.GetByID(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, errors.CodeNotFound) {
			logger.Error("%s Error: get conversation %s: %v", op, conversationID, err)
		}
		return nil, uc.storeFailure("get_conversation", err)
	}
	return conv, nil
}

// ownedConversation loads the conversation and requires userID to be its user side.
func (uc *ConversationUseCase) ownedConversation(ctx context.Context, op, userID, conversationID string) (*entity.Conversation, error) {
	conv, err := uc.getConversation(ctx, op, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		logger.Warn("%s: user %s does not own conversation %s", op, userID, conv.ID)
		return nil, errors.Forbidden("You do not have access to this conversation", nil)
	}
	return conv, nil
}

func (uc *ConversationUseCase) admit(ctx context.Context, key string) error {
	if uc.rateLimiter == nil {
		return nil
	}
	if err := uc.rateLimiter.Admit(ctx, key); err != nil {
		if errors.Is(err, errors.CodeTooManyRequests) {
			uc.metrics.IncRateLimited()
			logger.Warn("Rate limited: user %s", key)
		} else {
			logger.Error("Rate limiter Error: %v", err)
		}
		return err
	}
	return nil
}

// storeFailure counts infrastructure failures; domain errors pass through untouched.
func (uc *ConversationUseCase) storeFailure(op string, err error) error {
	if errors.Is(err, errors.CodeUnavailable) || errors.Is(err, errors.CodeInternal) {
		uc.metrics.IncStoreError(op)
	}
	if _, ok := errors.AsAppError(err); !ok {
		return errors.Internal("Unexpected store failure", err)
	}
	return err
}

// participantFor resolves which participant id the principal acts as in conv.
func participantFor(conv *entity.Conversation, principal entity.Principal) (string, entity.Side, bool) {
	if principal.UserID != "" && principal.UserID == conv.UserID {
		return conv.UserID, entity.SideUser, true
	}
	if principal.ActsAsBusiness() && principal.BusinessID == conv.BusinessID {
		return conv.BusinessID, entity.SideBusiness, true
	}
	return "", "", false
}

func normalizeAttachments(uploaderID string, attachments []entity.Attachment) ([]entity.Attachment, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	if len(attachments) > MaxAttachmentsPerMessage {
		return nil, errors.BadRequest("A message can carry at most 10 attachments", nil)
	}

	out := make([]entity.Attachment, 0, len(attachments))
	for _, att := range attachments {
		if !entity.IsValidAttachmentType(att.Type) {
			return nil, errors.BadRequest("Attachment type must be one of image, file, document", nil)
		}
		if strings.TrimSpace(att.URL) == "" {
			return nil, errors.BadRequest("Attachment URL is required", nil)
		}
		if att.Size < 0 {
			return nil, errors.BadRequest("Attachment size cannot be negative", nil)
		}
		if att.UploadedBy == "" {
			att.UploadedBy = uploaderID
		}
		out = append(out, att)
	}
	return out, nil
}
