package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"bizconnect/internal/domain/entity"
	"bizconnect/pkg/logger"
)

const EventMessageSent = "message.sent"

// MessageSentEvent is the payload written to the message topic.
type MessageSentEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Seq            int64     `json:"seq"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	BusinessID     string    `json:"business_id"`
	UserID         string    `json:"user_id"`
	Preview        string    `json:"preview"`
	HasAttachments bool      `json:"has_attachments"`
	SentAt         time.Time `json:"sent_at"`
}

func NewMessageSentEvent(conv *entity.Conversation, msg *entity.Message) MessageSentEvent {
	return MessageSentEvent{
		Type:           EventMessageSent,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Seq:            msg.Seq,
		SenderID:       msg.SenderID,
		RecipientID:    conv.OtherParticipant(msg.SenderID),
		BusinessID:     conv.BusinessID,
		UserID:         conv.UserID,
		Preview:        entity.PreviewOf(msg.Content),
		HasAttachments: len(msg.Attachments) > 0,
		SentAt:         msg.CreatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits message events keyed by conversation id, so one conversation's
// events stay on one partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("PublishMessageSent Error: %d events dropped: %v", len(messages), err)
			}
		},
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishMessageSent never fails the caller; delivery problems are logged.
func (p *KafkaPublisher) PublishMessageSent(ctx context.Context, conv *entity.Conversation, msg *entity.Message) {
	b, err := json.Marshal(NewMessageSentEvent(conv, msg))
	if err != nil {
		logger.Error("PublishMessageSent Error: encode event: %v", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(conv.ID),
		Value: b,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventMessageSent)},
		},
	})
	if err != nil {
		logger.Error("PublishMessageSent Error: topic %s: %v", p.topic, err)
	}
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishMessageSent(context.Context, *entity.Conversation, *entity.Message) {}

func (NoopPublisher) Close() error { return nil }
