package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/repository"
	"bizconnect/pkg/errors"
)

// runConversationStoreSuite exercises the behaviour every ConversationStore backend shares.
func runConversationStoreSuite(t *testing.T, newStore func(t *testing.T) repository.ConversationStore) {
	t.Run("CreateOrGetIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, created, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "user-1", first.UserID)
		assert.Equal(t, "biz-1", first.BusinessID)
		assert.Zero(t, first.LastSeq)
		assert.Nil(t, first.LastMessage)

		second, created, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		found, err := store.FindByParticipants(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)

		_, err = store.FindByParticipants(ctx, "user-2", "biz-1")
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("ConcurrentCreateOrGetYieldsOneConversation", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = make(map[string]struct{})
			creates int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conv, created, err := store.CreateOrGet(ctx, "user-1", "biz-1")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[conv.ID] = struct{}{}
				if created {
					creates++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 1)
		assert.Equal(t, 1, creates)
	})

	t.Run("AppendAssignsSequenceAndCounters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)

		m1, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: "hello"})
		require.NoError(t, err)
		m2, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: "hi there"})
		require.NoError(t, err)
		m3, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: "how can we help?"})
		require.NoError(t, err)

		assert.Equal(t, int64(1), m1.Seq)
		assert.Equal(t, int64(2), m2.Seq)
		assert.Equal(t, int64(3), m3.Seq)
		assert.NotEmpty(t, m3.ID)
		assert.False(t, m3.Read)

		got, err := store.GetByID(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.LastSeq)
		require.NotNil(t, got.LastMessage)
		assert.Equal(t, m3.ID, got.LastMessage.ID)
		assert.Equal(t, "how can we help?", got.LastMessage.Preview)
		assert.Equal(t, 2, got.UnreadCount)
		assert.Equal(t, 1, got.BusinessUnreadCount)

		_, err = store.Append(ctx, &entity.Message{ConversationID: "missing", SenderID: "user-1", Content: "x"})
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("ListMessagesAscendingAndParticipantOnly", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: fmt.Sprintf("m%d", i)})
			require.NoError(t, err)
		}

		page, total, err := store.ListMessages(ctx, conv.ID, "biz-1", 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.Equal(t, "m2", page[0].Content)
		assert.Equal(t, int64(3), page[0].Seq)
		assert.Equal(t, "m3", page[1].Content)

		beyond, total, err := store.ListMessages(ctx, conv.ID, "user-1", 10, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Empty(t, beyond)

		_, _, err = store.ListMessages(ctx, conv.ID, "stranger", 10, 0)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("MarkReadOnlyTouchesCounterpartMessages", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		for _, sender := range []string{"biz-1", "user-1", "biz-1"} {
			_, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: sender, Content: "x"})
			require.NoError(t, err)
		}

		marked, err := store.MarkRead(ctx, conv.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 2, marked)

		got, err := store.GetByID(ctx, conv.ID)
		require.NoError(t, err)
		assert.Zero(t, got.UnreadCount)
		assert.Equal(t, 1, got.BusinessUnreadCount)

		msgs, _, err := store.ListMessages(ctx, conv.ID, "user-1", 10, 0)
		require.NoError(t, err)
		for _, msg := range msgs {
			if msg.SenderID == "biz-1" {
				assert.True(t, msg.Read)
				assert.NotNil(t, msg.ReadAt)
			} else {
				assert.False(t, msg.Read)
			}
		}

		again, err := store.MarkRead(ctx, conv.ID, "user-1")
		require.NoError(t, err)
		assert.Zero(t, again)

		marked, err = store.MarkRead(ctx, conv.ID, "biz-1")
		require.NoError(t, err)
		assert.Equal(t, 1, marked)
		got, err = store.GetByID(ctx, conv.ID)
		require.NoError(t, err)
		assert.Zero(t, got.BusinessUnreadCount)
	})

	t.Run("ConcurrentAppendAndMarkReadKeepCounterExact", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)

		const appends = 30
		var wg sync.WaitGroup
		for i := 0; i < appends; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: fmt.Sprintf("m%d", i)})
				assert.NoError(t, err)
			}(i)
			if i%5 == 0 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.MarkRead(ctx, conv.ID, "user-1")
					assert.NoError(t, err)
				}()
			}
		}
		wg.Wait()

		got, err := store.GetByID(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(appends), got.LastSeq)

		msgs, total, err := store.ListMessages(ctx, conv.ID, "user-1", appends, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(appends), total)
		unread := 0
		seen := make(map[int64]bool)
		for _, msg := range msgs {
			seen[msg.Seq] = true
			if !msg.Read {
				unread++
			}
		}
		assert.Len(t, seen, appends)
		assert.Equal(t, unread, got.UnreadCount)
	})

	t.Run("ListFiltersAndOrdering", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		older, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		newer, _, err := store.CreateOrGet(ctx, "user-1", "biz-2")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		archived, _, err := store.CreateOrGet(ctx, "user-1", "biz-3")
		require.NoError(t, err)
		_, _, err = store.CreateOrGet(ctx, "user-2", "biz-1")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		_, err = store.Append(ctx, &entity.Message{ConversationID: newer.ID, SenderID: "biz-2", Content: "ping"})
		require.NoError(t, err)
		require.NoError(t, store.SetArchived(ctx, archived.ID, true))

		all, total, err := store.List(ctx, repository.ConversationQuery{ParticipantID: "user-1", Side: entity.SideUser, Filter: entity.ConversationFilterAll, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, older.ID, all[1].ID)

		unread, total, err := store.List(ctx, repository.ConversationQuery{ParticipantID: "user-1", Side: entity.SideUser, Filter: entity.ConversationFilterUnread, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, unread, 1)
		assert.Equal(t, newer.ID, unread[0].ID)

		arch, total, err := store.List(ctx, repository.ConversationQuery{ParticipantID: "user-1", Side: entity.SideUser, Filter: entity.ConversationFilterArchived, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, arch, 1)
		assert.Equal(t, archived.ID, arch[0].ID)
		assert.True(t, arch[0].Archived)

		inbox, total, err := store.List(ctx, repository.ConversationQuery{ParticipantID: "biz-1", Side: entity.SideBusiness, Filter: entity.ConversationFilterAll, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, inbox, 1)

		empty, total, err := store.List(ctx, repository.ConversationQuery{ParticipantID: "biz-1", Side: entity.SideBusiness, Filter: entity.ConversationFilterAll, Limit: 10, Offset: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Empty(t, empty)
	})

	t.Run("DeleteIfEmpty", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		empty, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		deleted, err := store.DeleteIfEmpty(ctx, empty.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		_, err = store.GetByID(ctx, empty.ID)
		assert.True(t, errors.Is(err, errors.CodeNotFound))

		used, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		assert.NotEqual(t, empty.ID, used.ID)
		_, err = store.Append(ctx, &entity.Message{ConversationID: used.ID, SenderID: "user-1", Content: "x"})
		require.NoError(t, err)
		deleted, err = store.DeleteIfEmpty(ctx, used.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("DeleteCascade", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: "x"})
			require.NoError(t, err)
		}

		removed, err := store.DeleteByConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		removed, err = store.DeleteByConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Zero(t, removed)

		require.NoError(t, store.Delete(ctx, conv.ID))
		_, err = store.GetByID(ctx, conv.ID)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
		_, _, err = store.ListMessages(ctx, conv.ID, "user-1", 10, 0)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
		assert.True(t, errors.Is(store.Delete(ctx, conv.ID), errors.CodeNotFound))
		assert.True(t, errors.Is(store.SetArchived(ctx, conv.ID, true), errors.CodeNotFound))

		_, err = store.FindByParticipants(ctx, "user-1", "biz-1")
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("DeleteRemovesMessagesAppendedAfterSweep", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		_, err = store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: "hello"})
		require.NoError(t, err)

		removed, err := store.DeleteByConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: "reply"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, conv.ID))

		removed, err = store.DeleteByConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Zero(t, removed, "messages outlived their conversation")

		_, err = store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: "late"})
		assert.True(t, errors.Is(err, errors.CodeNotFound))

		fresh, created, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, conv.ID, fresh.ID)
		msgs, total, err := store.ListMessages(ctx, fresh.ID, "user-1", 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, msgs)
	})

	t.Run("ListMessagesAfterSweepCountsWhatIsLeft", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		conv, _, err := store.CreateOrGet(ctx, "user-1", "biz-1")
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "user-1", Content: fmt.Sprintf("m%d", i)})
			require.NoError(t, err)
		}

		_, err = store.DeleteByConversation(ctx, conv.ID)
		require.NoError(t, err)

		msgs, total, err := store.ListMessages(ctx, conv.ID, "user-1", 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, msgs)

		reply, err := store.Append(ctx, &entity.Message{ConversationID: conv.ID, SenderID: "biz-1", Content: "still here"})
		require.NoError(t, err)
		msgs, total, err = store.ListMessages(ctx, conv.ID, "user-1", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, msgs, 1)
		assert.Equal(t, reply.ID, msgs[0].ID)
	})
}
