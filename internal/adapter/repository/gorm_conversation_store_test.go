package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, MigrateGorm(db))
	return db
}

func TestGormConversationStore(t *testing.T) {
	runConversationStoreSuite(t, func(t *testing.T) repository.ConversationStore {
		return NewGormConversationStore(newSQLiteDB(t))
	})
}

func TestGormConversationStore_AttachmentsRoundTrip(t *testing.T) {
	store := NewGormConversationStore(newSQLiteDB(t))
	ctx := context.Background()

	conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
	require.NoError(t, err)

	_, err = store.Append(ctx, &entity.Message{
		ConversationID: conv.ID,
		SenderID:       "user-1",
		Content:        "see attached",
		Attachments: []entity.Attachment{{
			Type:     entity.AttachmentTypeImage,
			URL:      "https://storage.googleapis.com/bucket/a.png",
			Filename: "a.png",
			Size:     42,
			MimeType: "image/png",
		}},
	})
	require.NoError(t, err)

	msgs, _, err := store.ListMessages(ctx, conv.ID, "biz-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "a.png", msgs[0].Attachments[0].Filename)
	assert.Equal(t, int64(42), msgs[0].Attachments[0].Size)
}

func TestGormConversationStore_DeleteLeavesNoMessageRows(t *testing.T) {
	db := newSQLiteDB(t)
	store := NewGormConversationStore(db)
	ctx := context.Background()

	conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
	require.NoError(t, err)
	_, err = store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: "hello"})
	require.NoError(t, err)

	_, err = store.DeleteByConversation(ctx, conv.ID)
	require.NoError(t, err)
	_, err = store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: "reply"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, conv.ID))

	var rows int64
	require.NoError(t, db.Model(&messageRecord{}).Where("conversation_id = ?", conv.ID).Count(&rows).Error)
	assert.Zero(t, rows)
	require.NoError(t, db.Model(&conversationRecord{}).Where("id = ?", conv.ID).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestGormBusinessRepository(t *testing.T) {
	db := newSQLiteDB(t)
	require.NoError(t, db.Create(&businessRecord{ID: "biz-1", Name: "Coffee Corner"}).Error)

	repo := NewGormBusinessRepository(db)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "biz-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "biz-404")
	require.NoError(t, err)
	assert.False(t, exists)
}
