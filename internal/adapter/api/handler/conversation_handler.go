package handler

import (
	"github.com/labstack/echo/v4"

	"bizconnect/internal/adapter/api/middleware"
	"bizconnect/internal/domain/entity"
	"bizconnect/internal/usecase"
	"bizconnect/pkg/errors"
	"bizconnect/pkg/response"
	"bizconnect/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

type attachmentRequest struct {
	Type     string `json:"type" validate:"required,oneof=image file document"`
	URL      string `json:"url" validate:"required,url"`
	Filename string `json:"filename" validate:"max=255"`
	Size     int64  `json:"size" validate:"min=0"`
	MimeType string `json:"mime_type"`
}

type startConversationRequest struct {
	BusinessID     string              `json:"business_id" validate:"required"`
	InitialMessage string              `json:"initial_message" validate:"required"`
	Attachments    []attachmentRequest `json:"attachments" validate:"max=10,dive"`
}

type sendMessageRequest struct {
	Content     string              `json:"content" validate:"required"`
	Attachments []attachmentRequest `json:"attachments" validate:"max=10,dive"`
}

func toAttachments(reqs []attachmentRequest) []entity.Attachment {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]entity.Attachment, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, entity.Attachment{
			Type:     r.Type,
			URL:      r.URL,
			Filename: r.Filename,
			Size:     r.Size,
			MimeType: r.MimeType,
		})
	}
	return out
}

func principal(c echo.Context) (entity.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return entity.Principal{}, errors.Unauthorized("Authentication required", nil)
	}
	return p, nil
}

// StartConversation opens (or reuses) the caller's conversation with a business.
func (h *ConversationHandler) StartConversation(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req startConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.conversationUseCase.StartConversation(c.Request().Context(), p, usecase.StartConversationInput{
		BusinessID:     req.BusinessID,
		InitialMessage: req.InitialMessage,
		Attachments:    toAttachments(req.Attachments),
	})
	if err != nil {
		return response.Error(c, err)
	}

	if result.Created {
		return response.Created(c, result)
	}
	return response.Success(c, result)
}

func (h *ConversationHandler) GetConversations(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	convs, pagination, err := h.conversationUseCase.GetConversations(c.Request().Context(), p.UserID, c.QueryParam("filter"), params.Page, params.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, convs, pagination)
}

func (h *ConversationHandler) GetBusinessConversations(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	convs, pagination, err := h.conversationUseCase.GetBusinessConversations(c.Request().Context(), p, c.QueryParam("filter"), params.Page, params.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, convs, pagination)
}

func (h *ConversationHandler) GetMessages(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	messages, pagination, err := h.conversationUseCase.GetMessages(c.Request().Context(), p, c.Param("id"), params.Page, params.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, pagination)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.conversationUseCase.SendMessage(c.Request().Context(), p, c.Param("id"), usecase.SendMessageInput{
		Content:     req.Content,
		Attachments: toAttachments(req.Attachments),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

func (h *ConversationHandler) MarkAsRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	marked, err := h.conversationUseCase.MarkMessagesAsRead(c.Request().Context(), p.UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": c.Param("id"),
		"marked":          marked,
	})
}

func (h *ConversationHandler) MarkBusinessAsRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	marked, err := h.conversationUseCase.MarkBusinessMessagesAsRead(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": c.Param("id"),
		"marked":          marked,
	})
}

func (h *ConversationHandler) Archive(c echo.Context) error {
	return h.setArchived(c, true)
}

func (h *ConversationHandler) Unarchive(c echo.Context) error {
	return h.setArchived(c, false)
}

func (h *ConversationHandler) setArchived(c echo.Context, archived bool) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if archived {
		err = h.conversationUseCase.ArchiveConversation(ctx, p.UserID, c.Param("id"))
	} else {
		err = h.conversationUseCase.UnarchiveConversation(ctx, p.UserID, c.Param("id"))
	}
	if err != nil {
		return response.Error(c, err)
	}

	state := entity.ConversationStateActive
	if archived {
		state = entity.ConversationStateArchived
	}
	return response.Success(c, map[string]interface{}{
		"conversation_id": c.Param("id"),
		"state":           state,
	})
}

func (h *ConversationHandler) DeleteConversation(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.conversationUseCase.DeleteConversation(c.Request().Context(), p.UserID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": c.Param("id"),
		"deleted":         true,
	})
}
