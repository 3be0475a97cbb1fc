package usecase

import (
	"qwiken-auth/internal/data/repository"
	"qwiken-auth/internal/email"
	"qwiken-auth/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Reset ResetService
}

func NewService(repo *repository.Repository, dispatcher email.Dispatcher, config *utils.Config, log *zap.Logger) *Service {
	return &Service{
		Reset: NewResetService(repo, dispatcher, config, log),
	}
}
