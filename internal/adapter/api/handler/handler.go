package handler

import (
	"bizconnect/internal/infrastructure/jwtauth"
	"bizconnect/internal/usecase"
)

var (
	conversationHandler *ConversationHandler
	attachmentHandler   *AttachmentHandler
	healthHandler       *HealthHandler
	devTokenHandler     *DevTokenHandler
)

func Setup(
	conversationUseCase *usecase.ConversationUseCase,
	attachmentUseCase *usecase.AttachmentUseCase,
	storeDriver string,
) {
	conversationHandler = NewConversationHandler(conversationUseCase)
	attachmentHandler = NewAttachmentHandler(attachmentUseCase)
	healthHandler = NewHealthHandler(storeDriver)
}

// SetupDevTokenHandler is only called when tokens are self-issued.
func SetupDevTokenHandler(verifier *jwtauth.Verifier) {
	devTokenHandler = NewDevTokenHandler(verifier)
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetAttachmentHandler() *AttachmentHandler {
	return attachmentHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}
