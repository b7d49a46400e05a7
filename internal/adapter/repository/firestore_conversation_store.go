package repository

import (
	"context"
	stderrors "errors"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
)

const (
	conversationsCollection     = "conversations"
	conversationPairsCollection = "conversation_pairs"
	messagesCollection          = "messages"

	// Firestore caps a transaction at 500 writes; keep room for the conversation update.
	markReadBatchSize = 400
	deleteBatchSize   = 400
)

type conversationPair struct {
	ConversationID string `firestore:"conversationId"`
	UserID         string `firestore:"userId"`
	BusinessID     string `firestore:"businessId"`
}

type firestoreConversationStore struct {
	client *firestore.Client
}

// NewFirestoreConversationStore keeps conversations in "conversations", messages in a
// per-conversation "messages" subcollection and one "conversation_pairs" document per
// (business, user) pair that makes CreateOrGet unique.
func NewFirestoreConversationStore(client *firestore.Client) repository.ConversationStore {
	return &firestoreConversationStore{
		client: client,
	}
}

func (r *firestoreConversationStore) conversations() *firestore.CollectionRef {
	return r.client.Collection(conversationsCollection)
}

func (r *firestoreConversationStore) messages(conversationID string) *firestore.CollectionRef {
	return r.conversations().Doc(conversationID).Collection(messagesCollection)
}

// pairRef derives a valid document id from the participant pair.
func (r *firestoreConversationStore) pairRef(userID, businessID string) *firestore.DocumentRef {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(pairKey(userID, businessID))).String()
	return r.client.Collection(conversationPairsCollection).Doc(id)
}

func decodeConversation(doc *firestore.DocumentSnapshot) (*entity.Conversation, error) {
	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conv.ID = doc.Ref.ID
	return &conv, nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var msg entity.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	msg.ID = doc.Ref.ID
	return &msg, nil
}

func (r *firestoreConversationStore) FindByParticipants(ctx context.Context, userID, businessID string) (*entity.Conversation, error) {
	pairDoc, err := r.pairRef(userID, businessID).Get(ctx)
	if err != nil {
		return nil, firestoreError("find conversation", err)
	}
	var pair conversationPair
	if err := pairDoc.DataTo(&pair); err != nil {
		return nil, errors.Internal("Failed to parse conversation pair", err)
	}
	return r.GetByID(ctx, pair.ConversationID)
}

func (r *firestoreConversationStore) CreateOrGet(ctx context.Context, userID, businessID string) (*entity.Conversation, bool, error) {
	var (
		conv    *entity.Conversation
		created bool
	)

	pairRef := r.pairRef(userID, businessID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		pairDoc, err := tx.Get(pairRef)
		if err == nil {
			var pair conversationPair
			if err := pairDoc.DataTo(&pair); err != nil {
				return errors.Internal("Failed to parse conversation pair", err)
			}
			convDoc, err := tx.Get(r.conversations().Doc(pair.ConversationID))
			if err != nil {
				return err
			}
			conv, err = decodeConversation(convDoc)
			return err
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		now := time.Now().UTC()
		conv = &entity.Conversation{
			ID:         uuid.New().String(),
			BusinessID: businessID,
			UserID:     userID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(pairRef, conversationPair{ConversationID: conv.ID, UserID: userID, BusinessID: businessID}); err != nil {
			return err
		}
		if err := tx.Create(r.conversations().Doc(conv.ID), conv); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, firestoreError("create conversation", err)
	}
	return conv, created, nil
}

func (r *firestoreConversationStore) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.conversations().Doc(id).Get(ctx)
	if err != nil {
		return nil, firestoreError("get conversation", err)
	}
	return decodeConversation(doc)
}

// List queries by participant and archived state; the unread filter is applied in memory.
func (r *firestoreConversationStore) List(ctx context.Context, query repository.ConversationQuery) ([]*entity.Conversation, int64, error) {
	participantField := "userId"
	if query.Side == entity.SideBusiness {
		participantField = "businessId"
	}

	q := r.conversations().
		Where(participantField, "==", query.ParticipantID).
		Where("archived", "==", query.Filter == entity.ConversationFilterArchived).
		OrderBy("updatedAt", firestore.Desc)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, firestoreError("list conversations", err)
	}

	var matched []*entity.Conversation
	for _, doc := range docs {
		conv, err := decodeConversation(doc)
		if err != nil {
			return nil, 0, err
		}
		if query.Filter == entity.ConversationFilterUnread && conv.UnreadFor(sideOrUser(query.Side)) == 0 {
			continue
		}
		matched = append(matched, conv)
	}
	sortConversations(matched)

	total := int64(len(matched))
	return pageOf(matched, query.Limit, query.Offset), total, nil
}

func (r *firestoreConversationStore) SetArchived(ctx context.Context, id string, archived bool) error {
	_, err := r.conversations().Doc(id).Update(ctx, []firestore.Update{
		{Path: "archived", Value: archived},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return firestoreError("archive conversation", err)
	}
	return nil
}

// errMessagesRemain aborts a delete transaction that found more messages than it may remove.
var errMessagesRemain = stderrors.New("conversation still has messages")

const deleteAttempts = 3

// Delete removes the conversation, its pair document and any messages that are still
// attached. The final transaction reads the conversation document Append writes to, so
// a message committed after the sweep is either seen and removed or makes it retry.
func (r *firestoreConversationStore) Delete(ctx context.Context, id string) error {
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		err := r.deleteConversation(ctx, id)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, errMessagesRemain) {
			return firestoreError("delete conversation", err)
		}
		if _, err := r.DeleteByConversation(ctx, id); err != nil {
			return err
		}
	}
	return errors.Unavailable("Conversation is still receiving messages, retry the delete", nil)
}

func (r *firestoreConversationStore) deleteConversation(ctx context.Context, id string) error {
	convRef := r.conversations().Doc(id)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(convRef)
		if err != nil {
			return err
		}
		conv, err := decodeConversation(doc)
		if err != nil {
			return err
		}
		leftovers, err := tx.Documents(r.messages(id).Limit(deleteBatchSize)).GetAll()
		if err != nil {
			return err
		}
		if len(leftovers) == deleteBatchSize {
			return errMessagesRemain
		}

		for _, msgDoc := range leftovers {
			if err := tx.Delete(msgDoc.Ref); err != nil {
				return err
			}
		}
		if err := tx.Delete(r.pairRef(conv.UserID, conv.BusinessID)); err != nil {
			return err
		}
		return tx.Delete(convRef)
	})
}

func (r *firestoreConversationStore) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	deleted := false
	convRef := r.conversations().Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false

		doc, err := tx.Get(convRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		conv, err := decodeConversation(doc)
		if err != nil {
			return err
		}
		if conv.LastSeq > 0 {
			return nil
		}
		if err := tx.Delete(r.pairRef(conv.UserID, conv.BusinessID)); err != nil {
			return err
		}
		if err := tx.Delete(convRef); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, firestoreError("delete empty conversation", err)
	}
	return deleted, nil
}

func (r *firestoreConversationStore) Append(ctx context.Context, message *entity.Message) (*entity.Message, error) {
	var stored *entity.Message

	convRef := r.conversations().Doc(message.ConversationID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(convRef)
		if err != nil {
			return err
		}
		conv, err := decodeConversation(doc)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(message.SenderID) {
			return errors.Forbidden("Sender is not a participant of this conversation", nil)
		}

		msg := *message
		msg.ID = uuid.New().String()
		msg.Seq = conv.LastSeq + 1
		msg.Read = false
		msg.ReadAt = nil
		msg.CreatedAt = time.Now().UTC()

		conv.ApplyMessage(&msg)

		if err := tx.Create(r.messages(conv.ID).Doc(msg.ID), &msg); err != nil {
			return err
		}
		if err := tx.Set(convRef, conv); err != nil {
			return err
		}
		stored = &msg
		return nil
	})
	if err != nil {
		return nil, firestoreError("append message", err)
	}
	return stored, nil
}

// ListMessages counts the subcollection instead of trusting LastSeq, which keeps
// counting messages a partial delete already swept.
func (r *firestoreConversationStore) ListMessages(ctx context.Context, conversationID, participantID string, limit, offset int) ([]*entity.Message, int64, error) {
	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conv.HasParticipant(participantID) {
		return nil, 0, errors.NotFound("Conversation", nil)
	}

	total, err := r.countMessages(ctx, conversationID)
	if err != nil {
		return nil, 0, firestoreError("count messages", err)
	}
	if int64(offset) >= total {
		return []*entity.Message{}, total, nil
	}

	q := r.messages(conversationID).
		OrderBy("seq", firestore.Asc).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, firestoreError("list messages", err)
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := decodeMessage(doc)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	return messages, total, nil
}

func (r *firestoreConversationStore) countMessages(ctx context.Context, conversationID string) (int64, error) {
	res, err := r.messages(conversationID).NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}
	count, ok := res["total"].(*firestorepb.Value)
	if !ok {
		return 0, stderrors.New("count aggregation missing from response")
	}
	return count.GetIntegerValue(), nil
}

// MarkRead works in chunks that fit one transaction each. Every chunk subtracts what
// it marked from the reader's counter; the chunk that drains the unread set zeroes it.
func (r *firestoreConversationStore) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	total := 0
	for {
		marked, drained, err := r.markReadChunk(ctx, conversationID, readerID)
		if err != nil {
			return total, firestoreError("mark messages read", err)
		}
		total += marked
		if drained {
			return total, nil
		}
	}
}

func (r *firestoreConversationStore) markReadChunk(ctx context.Context, conversationID, readerID string) (int, bool, error) {
	var (
		marked  int
		drained bool
	)

	convRef := r.conversations().Doc(conversationID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		marked, drained = 0, false

		doc, err := tx.Get(convRef)
		if err != nil {
			return err
		}
		conv, err := decodeConversation(doc)
		if err != nil {
			return err
		}
		side, ok := conv.SideOf(readerID)
		if !ok {
			return errors.Forbidden("Reader is not a participant of this conversation", nil)
		}

		unreadQuery := r.messages(conversationID).
			Where("read", "==", false).
			Where("senderId", "==", conv.OtherParticipant(readerID)).
			Limit(markReadBatchSize)
		docs, err := tx.Documents(unreadQuery).GetAll()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, msgDoc := range docs {
			if err := tx.Update(msgDoc.Ref, []firestore.Update{
				{Path: "read", Value: true},
				{Path: "readAt", Value: now},
			}); err != nil {
				return err
			}
		}
		marked = len(docs)
		drained = marked < markReadBatchSize

		counterField := "unreadCount"
		if side == entity.SideBusiness {
			counterField = "businessUnreadCount"
		}
		remaining := 0
		if !drained {
			remaining = conv.UnreadFor(side) - marked
			if remaining < 0 {
				remaining = 0
			}
		}
		return tx.Update(convRef, []firestore.Update{
			{Path: counterField, Value: remaining},
			{Path: "updatedAt", Value: now},
		})
	})
	return marked, drained, err
}

func (r *firestoreConversationStore) DeleteByConversation(ctx context.Context, conversationID string) (int, error) {
	deleted := 0
	for {
		docs, err := r.messages(conversationID).Limit(deleteBatchSize).Documents(ctx).GetAll()
		if err != nil {
			return deleted, firestoreError("delete messages", err)
		}
		if len(docs) == 0 {
			return deleted, nil
		}

		bw := r.client.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
		for _, doc := range docs {
			job, err := bw.Delete(doc.Ref)
			if err != nil {
				bw.End()
				return deleted, firestoreError("delete messages", err)
			}
			jobs = append(jobs, job)
		}
		bw.End()

		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return deleted, firestoreError("delete messages", err)
			}
			deleted++
		}

		if len(docs) < deleteBatchSize {
			return deleted, nil
		}
	}
}

// firestoreError maps gRPC status codes onto the store error kinds.
func firestoreError(op string, err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	if errors.IsContextError(err) {
		return errors.Unavailable("Conversation store unavailable", err)
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound("Conversation", err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted, codes.Canceled:
		return errors.Unavailable("Conversation store unavailable", err)
	}

	logger.Error("Store Error: %s: %v", op, err)
	return errors.Internal("Failed to "+op, err)
}
