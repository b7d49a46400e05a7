package entity

import (
	"time"
	"unicode/utf8"
)

// Side identifies which participant of a conversation an action belongs to.
type Side string

const (
	SideUser     Side = "user"
	SideBusiness Side = "business"
)

const (
	ConversationFilterAll      = "all"
	ConversationFilterUnread   = "unread"
	ConversationFilterArchived = "archived"
)

const (
	ConversationStateActive   = "active"
	ConversationStateArchived = "archived"
)

const lastMessagePreviewLength = 120

type LastMessage struct {
	ID       string    `json:"id" firestore:"id"`
	SenderID string    `json:"sender_id" firestore:"senderId"`
	Preview  string    `json:"preview" firestore:"preview"`
	Seq      int64     `json:"seq" firestore:"seq"`
	SentAt   time.Time `json:"sent_at" firestore:"sentAt"`
}

type Conversation struct {
	ID                  string       `json:"id" firestore:"id"`
	BusinessID          string       `json:"business_id" firestore:"businessId"`
	UserID              string       `json:"user_id" firestore:"userId"`
	LastMessage         *LastMessage `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastSeq             int64        `json:"last_seq" firestore:"lastSeq"`
	UnreadCount         int          `json:"unread_count" firestore:"unreadCount"` // unread by the user side
	BusinessUnreadCount int          `json:"business_unread_count" firestore:"businessUnreadCount"`
	Archived            bool         `json:"archived" firestore:"archived"`
	CreatedAt           time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time    `json:"updated_at" firestore:"updatedAt"`
}

// SideOf reports which side participantID is on, if any.
func (c *Conversation) SideOf(participantID string) (Side, bool) {
	switch participantID {
	case "":
		return "", false
	case c.UserID:
		return SideUser, true
	case c.BusinessID:
		return SideBusiness, true
	}
	return "", false
}

func (c *Conversation) HasParticipant(participantID string) bool {
	_, ok := c.SideOf(participantID)
	return ok
}

// OtherParticipant returns the counterpart of viewerID, or "" if viewerID is not a participant.
func (c *Conversation) OtherParticipant(viewerID string) string {
	switch viewerID {
	case c.UserID:
		return c.BusinessID
	case c.BusinessID:
		return c.UserID
	}
	return ""
}

func (c *Conversation) State() string {
	if c.Archived {
		return ConversationStateArchived
	}
	return ConversationStateActive
}

// UnreadFor returns the cached unread counter of the given side.
func (c *Conversation) UnreadFor(side Side) int {
	if side == SideBusiness {
		return c.BusinessUnreadCount
	}
	return c.UnreadCount
}

// ApplyMessage updates the derived fields for a newly appended message.
// Stores call it inside their atomic unit; msg.Seq must already be assigned.
func (c *Conversation) ApplyMessage(msg *Message) {
	c.LastSeq = msg.Seq
	c.LastMessage = &LastMessage{
		ID:       msg.ID,
		SenderID: msg.SenderID,
		Preview:  PreviewOf(msg.Content),
		Seq:      msg.Seq,
		SentAt:   msg.CreatedAt,
	}
	if msg.SenderID == c.UserID {
		c.BusinessUnreadCount++
	} else {
		c.UnreadCount++
	}
	c.UpdatedAt = msg.CreatedAt
}

// ResetUnread zeroes the counter of the given side.
func (c *Conversation) ResetUnread(side Side) {
	if side == SideBusiness {
		c.BusinessUnreadCount = 0
		return
	}
	c.UnreadCount = 0
}

func IsValidConversationFilter(filter string) bool {
	switch filter {
	case ConversationFilterAll, ConversationFilterUnread, ConversationFilterArchived:
		return true
	}
	return false
}

// PreviewOf truncates content to the last-message preview length.
func PreviewOf(content string) string {
	if utf8.RuneCountInString(content) <= lastMessagePreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:lastMessagePreviewLength])
}
