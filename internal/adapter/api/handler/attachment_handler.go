package handler

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/usecase"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/logger"
	"bizconnect/pkg/response"
)

type AttachmentHandler struct {
	attachmentUseCase *usecase.AttachmentUseCase
}

func NewAttachmentHandler(attachmentUseCase *usecase.AttachmentUseCase) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentUseCase: attachmentUseCase,
	}
}

// Upload accepts a multipart "file" field and returns the stored Attachment.
func (h *AttachmentHandler) Upload(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("Missing or invalid file", err))
	}

	src, err := file.Open()
	if err != nil {
		logger.Error("Error opening uploaded file: %v", err)
		return response.Error(c, errors.BadRequest("Unable to read file", err))
	}
	defer src.Close()

	attachment, err := h.attachmentUseCase.Upload(c.Request().Context(), p, file.Filename, src)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, attachment)
}
