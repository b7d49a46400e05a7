package service

import (
	"strings"

	"bizconnect/internal/domain/entity"
)

var documentMimeTypes = map[string]bool{
	"application/pdf":               true,
	"application/msword":            true,
	"application/rtf":               true,
	"text/plain":                    true,
	"text/csv":                      true,
	"application/vnd.ms-excel":      true,
	"application/vnd.ms-powerpoint": true,
}

// ClassifyAttachment maps a sniffed MIME type onto an attachment type.
func ClassifyAttachment(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(base, "image/"):
		return entity.AttachmentTypeImage
	case documentMimeTypes[base],
		strings.HasPrefix(base, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(base, "application/vnd.oasis.opendocument."):
		return entity.AttachmentTypeDocument
	}
	return entity.AttachmentTypeFile
}
