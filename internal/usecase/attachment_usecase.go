package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"bizconnect/internal/domain/entity"
	"bizconnect/internal/domain/service"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
)

type AttachmentUseCase struct {
	storage  service.ObjectStorage
	maxBytes int64
}

func NewAttachmentUseCase(storage service.ObjectStorage, maxBytes int64) *AttachmentUseCase {
	return &AttachmentUseCase{
		storage:  storage,
		maxBytes: maxBytes,
	}
}

// Upload stores the file and returns an Attachment ready to be sent with a message.
// The type is decided from the sniffed content, not from the client's file name.
func (uc *AttachmentUseCase) Upload(ctx context.Context, principal entity.Principal, filename string, file io.Reader) (*entity.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(file, uc.maxBytes+1))
	if err != nil {
		return nil, errors.BadRequest("Failed to read attachment", err)
	}
	if len(data) == 0 {
		return nil, errors.BadRequest("Attachment is empty", nil)
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, errors.BadRequest(fmt.Sprintf("Attachment exceeds %d bytes", uc.maxBytes), nil)
	}

	mtype := mimetype.Detect(data)
	contentType := mtype.String()
	objectName := fmt.Sprintf("attachments/%s/%s%s", principal.UserID, uuid.New().String(), mtype.Extension())

	url, err := uc.storage.Put(ctx, objectName, contentType, bytes.NewReader(data))
	if err != nil {
		logger.Error("UploadAttachment Error: put %s: %v", objectName, err)
		return nil, errors.Unavailable("Failed to upload attachment", err)
	}

	return &entity.Attachment{
		Type:       service.ClassifyAttachment(contentType),
		URL:        url,
		Filename:   cleanFilename(filename, mtype.Extension()),
		Size:       int64(len(data)),
		MimeType:   contentType,
		UploadedBy: principal.UserID,
	}, nil
}

func cleanFilename(name, ext string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "attachment" + ext
	}
	return name
}
