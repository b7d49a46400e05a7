package repository

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
)

type gormConversationStore struct {
	db *gorm.DB
}

// NewGormConversationStore persists conversations in a SQL database through gorm.
// Tables must exist, see MigrateGorm.
func NewGormConversationStore(db *gorm.DB) repository.ConversationStore {
	return &gormConversationStore{
		db: db,
	}
}

func sqlNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (r *gormConversationStore) FindByParticipants(ctx context.Context, userID, businessID string) (*entity.Conversation, error) {
	var rec conversationRecord
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND user_id = ?", businessID, userID).
		Take(&rec).Error
	if err != nil {
		return nil, gormError("find conversation", err)
	}
	return rec.toEntity(), nil
}

func (r *gormConversationStore) CreateOrGet(ctx context.Context, userID, businessID string) (*entity.Conversation, bool, error) {
	now := sqlNow()
	rec := conversationRecord{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "business_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rec)
	if res.Error != nil {
		return nil, false, gormError("create conversation", res.Error)
	}
	if res.RowsAffected == 1 {
		return rec.toEntity(), true, nil
	}

	conv, err := r.FindByParticipants(ctx, userID, businessID)
	if err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

func (r *gormConversationStore) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	var rec conversationRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, gormError("get conversation", err)
	}
	return rec.toEntity(), nil
}

func (r *gormConversationStore) List(ctx context.Context, query repository.ConversationQuery) ([]*entity.Conversation, int64, error) {
	participantColumn, counterColumn := "user_id", "unread_count"
	if query.Side == entity.SideBusiness {
		participantColumn, counterColumn = "business_id", "business_unread_count"
	}

	q := r.db.WithContext(ctx).Model(&conversationRecord{}).Where(participantColumn+" = ?", query.ParticipantID)
	switch query.Filter {
	case entity.ConversationFilterArchived:
		q = q.Where("archived = ?", true)
	case entity.ConversationFilterUnread:
		q = q.Where("archived = ? AND "+counterColumn+" > 0", false)
	default:
		q = q.Where("archived = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, gormError("count conversations", err)
	}

	var recs []conversationRecord
	q = q.Order("updated_at DESC").Order("id ASC").Offset(query.Offset)
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, 0, gormError("list conversations", err)
	}

	convs := make([]*entity.Conversation, 0, len(recs))
	for i := range recs {
		convs = append(convs, recs[i].toEntity())
	}
	return convs, total, nil
}

func (r *gormConversationStore) SetArchived(ctx context.Context, id string, archived bool) error {
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived":   archived,
			"updated_at": sqlNow(),
		})
	if res.Error != nil {
		return gormError("archive conversation", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("Conversation", nil)
	}
	return nil
}

// Delete removes the conversation together with any messages still attached to it.
// It holds the same row lock as Append, so no message can land after the sweep.
func (r *gormConversationStore) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockConversation(tx, id); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&conversationRecord{}).Error
	})
	if err != nil {
		return gormError("delete conversation", err)
	}
	return nil
}

func (r *gormConversationStore) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND last_seq = 0", id).Delete(&conversationRecord{})
	if res.Error != nil {
		return false, gormError("delete empty conversation", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// lockConversation reads the row with FOR UPDATE so Append and MarkRead serialize per conversation.
// SQLite ignores the locking clause and relies on its database-level write lock.
func lockConversation(tx *gorm.DB, id string) (*conversationRecord, error) {
	var rec conversationRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormConversationStore) Append(ctx context.Context, message *entity.Message) (*entity.Message, error) {
	var stored *entity.Message

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := lockConversation(tx, message.ConversationID)
		if err != nil {
			return err
		}
		if message.SenderID != conv.UserID && message.SenderID != conv.BusinessID {
			return errors.Forbidden("Sender is not a participant of this conversation", nil)
		}

		now := sqlNow()
		msg := *message
		msg.ID = uuid.New().String()
		msg.Seq = conv.LastSeq + 1
		msg.Read = false
		msg.ReadAt = nil
		msg.CreatedAt = now

		if err := tx.Create(newMessageRecord(&msg)).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"last_seq":               msg.Seq,
			"last_message_id":        msg.ID,
			"last_message_sender_id": msg.SenderID,
			"last_message_preview":   entity.PreviewOf(msg.Content),
			"last_message_seq":       msg.Seq,
			"last_message_at":        now,
			"updated_at":             now,
		}
		if msg.SenderID == conv.UserID {
			updates["business_unread_count"] = gorm.Expr("business_unread_count + ?", 1)
		} else {
			updates["unread_count"] = gorm.Expr("unread_count + ?", 1)
		}
		if err := tx.Model(&conversationRecord{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
			return err
		}

		stored = &msg
		return nil
	})
	if err != nil {
		return nil, gormError("append message", err)
	}
	return stored, nil
}

func (r *gormConversationStore) ListMessages(ctx context.Context, conversationID, participantID string, limit, offset int) ([]*entity.Message, int64, error) {
	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conv.HasParticipant(participantID) {
		return nil, 0, errors.NotFound("Conversation", nil)
	}

	q := r.db.WithContext(ctx).Model(&messageRecord{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, gormError("count messages", err)
	}

	var recs []messageRecord
	q = q.Order("seq ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, 0, gormError("list messages", err)
	}

	messages := make([]*entity.Message, 0, len(recs))
	for i := range recs {
		messages = append(messages, recs[i].toEntity())
	}
	return messages, total, nil
}

func (r *gormConversationStore) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	var marked int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := lockConversation(tx, conversationID)
		if err != nil {
			return err
		}

		counterColumn := ""
		switch readerID {
		case conv.UserID:
			counterColumn = "unread_count"
		case conv.BusinessID:
			counterColumn = "business_unread_count"
		default:
			return errors.Forbidden("Reader is not a participant of this conversation", nil)
		}

		now := sqlNow()
		res := tx.Model(&messageRecord{}).
			Where("conversation_id = ? AND is_read = ? AND sender_id <> ?", conversationID, false, readerID).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		marked = res.RowsAffected

		return tx.Model(&conversationRecord{}).Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				counterColumn: 0,
				"updated_at":  now,
			}).Error
	})
	if err != nil {
		return 0, gormError("mark messages read", err)
	}
	return int(marked), nil
}

func (r *gormConversationStore) DeleteByConversation(ctx context.Context, conversationID string) (int, error) {
	res := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&messageRecord{})
	if res.Error != nil {
		return 0, gormError("delete messages", res.Error)
	}
	return int(res.RowsAffected), nil
}

// gormError maps driver errors onto the store error kinds.
func gormError(op string, err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Conversation", err)
	}
	if errors.IsContextError(err) || stderrors.Is(err, driver.ErrBadConn) {
		return errors.Unavailable("Conversation store unavailable", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.Unavailable("Conversation store unavailable", err)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		// serialization_failure, deadlock_detected, admin_shutdown, cannot_connect_now
		case "40001", "40P01", "57P01", "57P03":
			return errors.Unavailable("Conversation store unavailable", err)
		}
	}

	logger.Error("Store Error: %s: %v", op, err)
	return errors.Internal("Failed to "+op, err)
}
