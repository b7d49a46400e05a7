package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyMessageIncrementsRecipientSide(t *testing.T) {
	conv := &Conversation{ID: "c1", UserID: "u1", BusinessID: "b1"}
	now := time.Now()

	conv.ApplyMessage(&Message{ID: "m1", Seq: 1, SenderID: "u1", Content: "hi", CreatedAt: now})
	assert.Equal(t, 1, conv.BusinessUnreadCount)
	assert.Equal(t, 0, conv.UnreadCount)

	conv.ApplyMessage(&Message{ID: "m2", Seq: 2, SenderID: "b1", Content: "hello", CreatedAt: now})
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, int64(2), conv.LastSeq)
	assert.Equal(t, "m2", conv.LastMessage.ID)
	assert.Equal(t, now, conv.UpdatedAt)

	conv.ResetUnread(SideBusiness)
	assert.Equal(t, 0, conv.BusinessUnreadCount)
	assert.Equal(t, 1, conv.UnreadFor(SideUser))
}

func TestParticipants(t *testing.T) {
	conv := &Conversation{UserID: "u1", BusinessID: "b1"}

	side, ok := conv.SideOf("b1")
	assert.True(t, ok)
	assert.Equal(t, SideBusiness, side)
	assert.False(t, conv.HasParticipant("someone-else"))
	assert.False(t, conv.HasParticipant(""))
	assert.Equal(t, "b1", conv.OtherParticipant("u1"))
	assert.Equal(t, "", conv.OtherParticipant("x"))
}

func TestPreviewOfTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 300)
	assert.Len(t, []rune(PreviewOf(long)), lastMessagePreviewLength)
	assert.Equal(t, "short", PreviewOf("short"))
}
