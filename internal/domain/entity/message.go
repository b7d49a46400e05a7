package entity

import "time"

const (
	AttachmentTypeImage    = "image"
	AttachmentTypeFile     = "file"
	AttachmentTypeDocument = "document"
)

type Attachment struct {
	Type       string `json:"type" firestore:"type"` // "image", "file", "document"
	URL        string `json:"url" firestore:"url"`
	Filename   string `json:"filename" firestore:"filename"`
	Size       int64  `json:"size" firestore:"size"`
	MimeType   string `json:"mime_type" firestore:"mimeType"`
	UploadedBy string `json:"uploaded_by" firestore:"uploadedBy"`
}

type Message struct {
	ID             string       `json:"id" firestore:"id"`
	ConversationID string       `json:"conversation_id" firestore:"conversationId"`
	Seq            int64        `json:"seq" firestore:"seq"`
	SenderID       string       `json:"sender_id" firestore:"senderId"`
	Content        string       `json:"content" firestore:"content"`
	Attachments    []Attachment `json:"attachments,omitempty" firestore:"attachments,omitempty"`
	Read           bool         `json:"read" firestore:"read"`
	ReadAt         *time.Time   `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt      time.Time    `json:"created_at" firestore:"createdAt"`
}

func IsValidAttachmentType(t string) bool {
	switch t {
	case AttachmentTypeImage, AttachmentTypeFile, AttachmentTypeDocument:
		return true
	}
	return false
}
