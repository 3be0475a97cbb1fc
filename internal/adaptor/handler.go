package adaptor

import (
	"qwiken-auth/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Reset *ResetHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Reset: NewResetHandler(service.Reset, log),
	}
}
