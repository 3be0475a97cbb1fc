package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qwiken-auth/internal/data/entity"
	"qwiken-auth/internal/data/repository"
	"qwiken-auth/internal/email"
	"qwiken-auth/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sentinel errors surfaced to the HTTP boundary. ErrInvalidOrExpiredOTP
// is deliberately the single failure for wrong, expired, consumed and
// already-verified codes alike, so a probing caller learns nothing
// about stored state.
var (
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP")
	ErrOTPNotVerified      = errors.New("OTP not verified or expired")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrUserNotFound        = errors.New("user not found")
	ErrCredentialUpdate    = errors.New("failed to update password")
)

const minPasswordLen = 6

type ResetService interface {
	Issue(ctx context.Context, emailAddr, userName string) error
	Verify(ctx context.Context, emailAddr, code string) error
	Reset(ctx context.Context, emailAddr, code, newPassword string) error
}

type resetService struct {
	repo       *repository.Repository
	dispatcher email.Dispatcher
	config     *utils.Config
	log        *zap.Logger
}

func NewResetService(
	repo *repository.Repository,
	dispatcher email.Dispatcher,
	config *utils.Config,
	log *zap.Logger,
) ResetService {
	return &resetService{
		repo:       repo,
		dispatcher: dispatcher,
		config:     config,
		log:        log,
	}
}

// Issue generates a fresh code for the email, stores it and sends it
// out. Issuance succeeds once the row is persisted; email delivery is
// best-effort. Other still-valid codes for the same email are left
// untouched, so a resend never invalidates the previous code.
func (s *resetService) Issue(ctx context.Context, emailAddr, userName string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if userName == "" {
		userName = "User"
	}

	// Lazy cleanup: only rows already past expiry are removed.
	deleted, err := s.repo.OTP.DeleteExpired(ctx, emailAddr)
	if err != nil {
		s.log.Warn("Failed to clean up expired OTPs",
			zap.Error(err), zap.String("email", emailAddr))
	} else if deleted > 0 {
		s.log.Debug("Deleted expired OTPs",
			zap.Int64("count", deleted), zap.String("email", emailAddr))
	}

	code, err := utils.GenerateResetCode()
	if err != nil {
		s.log.Error("Failed to generate reset code", zap.Error(err))
		return fmt.Errorf("generate reset code: %w", err)
	}

	now := time.Now()
	otp := &entity.PasswordResetOTP{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		Email:     emailAddr,
		OTPCode:   code,
		ExpiresAt: now.Add(time.Duration(s.config.OTP.ExpiryMinutes) * time.Minute),
		IsUsed:    false,
		Attempts:  0,
	}

	if err := s.repo.OTP.Create(ctx, otp); err != nil {
		s.log.Error("Failed to save reset OTP", zap.Error(err), zap.String("email", emailAddr))
		return fmt.Errorf("save reset OTP: %w", err)
	}

	// The code is in the store, so the caller can still complete the
	// flow through support channels even if the email never lands.
	if err := s.dispatcher.SendResetCode(ctx, emailAddr, userName, code); err != nil {
		s.log.Warn("Failed to send reset email",
			zap.Error(err), zap.String("email", emailAddr))
	}

	s.log.Info("Reset OTP issued",
		zap.String("email", emailAddr),
		zap.String("otp_id", otp.ID.String()),
		zap.Time("expires_at", otp.ExpiresAt),
	)

	return nil
}

// Verify accepts the most recent eligible code and stamps verified_at.
// Verification only counts once the write lands.
func (s *resetService) Verify(ctx context.Context, emailAddr, code string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	otp, err := s.repo.OTP.FindEligible(ctx, emailAddr, code)
	if err != nil {
		s.log.Error("Failed to look up OTP", zap.Error(err), zap.String("email", emailAddr))
		return fmt.Errorf("look up OTP: %w", err)
	}
	if otp == nil {
		return ErrInvalidOrExpiredOTP
	}

	if err := s.repo.OTP.MarkVerified(ctx, otp.ID, time.Now()); err != nil {
		s.log.Error("Failed to mark OTP verified",
			zap.Error(err), zap.String("otp_id", otp.ID.String()))
		return fmt.Errorf("mark OTP verified: %w", err)
	}

	s.log.Info("Reset OTP verified",
		zap.String("email", emailAddr),
		zap.String("otp_id", otp.ID.String()),
	)

	return nil
}

// Reset commits the new credential. The verified-OTP re-query is a
// second gate: a verified code that has since expired or been consumed
// no longer authorizes a password change.
func (s *resetService) Reset(ctx context.Context, emailAddr, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	otp, err := s.repo.OTP.FindVerified(ctx, emailAddr, code)
	if err != nil {
		s.log.Error("Failed to re-check OTP", zap.Error(err), zap.String("email", emailAddr))
		return fmt.Errorf("re-check OTP: %w", err)
	}
	if otp == nil {
		return ErrOTPNotVerified
	}

	user, err := s.repo.User.FindByEmail(ctx, emailAddr)
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err), zap.String("email", emailAddr))
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCredentialUpdate, err)
	}

	if err := s.repo.User.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.log.Error("Failed to update credential",
			zap.Error(err), zap.String("user_id", user.ID.String()))
		return fmt.Errorf("%w: %v", ErrCredentialUpdate, err)
	}

	// Consumption marking is best-effort: the credential is already
	// updated, so a failure here is logged and swallowed.
	if err := s.repo.OTP.MarkUsed(ctx, otp.ID); err != nil {
		s.log.Warn("Failed to mark OTP as used",
			zap.Error(err), zap.String("otp_id", otp.ID.String()))
	}

	s.log.Info("Password reset committed",
		zap.String("email", emailAddr),
		zap.String("user_id", user.ID.String()),
		zap.String("otp_id", otp.ID.String()),
	)

	return nil
}
