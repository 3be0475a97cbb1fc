package repository

import (
	"qwiken-auth/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User UserRepository
	OTP  OTPRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User: NewUserRepository(db, log),
		OTP:  NewOTPRepository(db, log),
	}
}
