package repository

import (
	"context"
	"fmt"
	"time"

	"qwiken-auth/internal/data/entity"
	"qwiken-auth/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *entity.PasswordResetOTP) error
	DeleteExpired(ctx context.Context, email string) (int64, error)
	FindEligible(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error)
	FindVerified(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error)
	MarkVerified(ctx context.Context, otpID uuid.UUID, at time.Time) error
	MarkUsed(ctx context.Context, otpID uuid.UUID) error
}

type otpRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOTPRepository(db database.PgxIface, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "password_reset_otp")),
	}
}

func (r *otpRepository) Create(ctx context.Context, otp *entity.PasswordResetOTP) error {
	query := `
		INSERT INTO password_reset_otps (id, email, otp_code, expires_at,
		                                 is_used, attempts, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		otp.ID,
		otp.Email,
		otp.OTPCode,
		otp.ExpiresAt,
		otp.IsUsed,
		otp.Attempts,
		otp.VerifiedAt,
		otp.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create reset OTP",
			zap.Error(err),
			zap.String("email", otp.Email),
		)
		return fmt.Errorf("create reset OTP for %s: %w", otp.Email, err)
	}

	return nil
}

// DeleteExpired removes stale rows for one email. Still-valid rows are
// left alone, so several live codes can coexist for the same account.
func (r *otpRepository) DeleteExpired(ctx context.Context, email string) (int64, error) {
	query := `
		DELETE FROM password_reset_otps
		WHERE email = $1
		  AND expires_at < NOW()
	`

	result, err := r.db.Exec(ctx, query, email)
	if err != nil {
		r.log.Error("Failed to delete expired OTPs",
			zap.Error(err),
			zap.String("email", email),
		)
		return 0, fmt.Errorf("delete expired OTPs for %s: %w", email, err)
	}

	return result.RowsAffected(), nil
}

// FindEligible returns the newest record that could still be verified:
// matching code, unexpired, never verified, never consumed.
func (r *otpRepository) FindEligible(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error) {
	query := `
		SELECT id, email, otp_code, expires_at,
		       is_used, attempts, verified_at, created_at
		FROM password_reset_otps
		WHERE email = $1
		  AND otp_code = $2
		  AND expires_at > NOW()
		  AND verified_at IS NULL
		  AND is_used = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanOne(ctx, query, email, otpCode)
}

// FindVerified is the committer's second gate: the record must have been
// verified already and still be unexpired and unconsumed.
func (r *otpRepository) FindVerified(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error) {
	query := `
		SELECT id, email, otp_code, expires_at,
		       is_used, attempts, verified_at, created_at
		FROM password_reset_otps
		WHERE email = $1
		  AND otp_code = $2
		  AND verified_at IS NOT NULL
		  AND expires_at > NOW()
		  AND is_used = false
		ORDER BY verified_at DESC
		LIMIT 1
	`

	return r.scanOne(ctx, query, email, otpCode)
}

func (r *otpRepository) scanOne(ctx context.Context, query, email, otpCode string) (*entity.PasswordResetOTP, error) {
	var otp entity.PasswordResetOTP
	err := r.db.QueryRow(ctx, query, email, otpCode).Scan(
		&otp.ID,
		&otp.Email,
		&otp.OTPCode,
		&otp.ExpiresAt,
		&otp.IsUsed,
		&otp.Attempts,
		&otp.VerifiedAt,
		&otp.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find reset OTP",
			zap.Error(err),
			zap.String("email", email),
		)
		return nil, fmt.Errorf("find reset OTP for %s: %w", email, err)
	}

	return &otp, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, otpID uuid.UUID, at time.Time) error {
	query := `
		UPDATE password_reset_otps
		SET verified_at = $2
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, otpID, at)
	if err != nil {
		r.log.Error("Failed to mark OTP verified",
			zap.Error(err),
			zap.String("otp_id", otpID.String()),
		)
		return fmt.Errorf("mark OTP %s verified: %w", otpID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("OTP %s not found", otpID.String())
	}

	return nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, otpID uuid.UUID) error {
	query := `
		UPDATE password_reset_otps
		SET is_used = true
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, otpID)
	if err != nil {
		r.log.Error("Failed to mark OTP as used",
			zap.Error(err),
			zap.String("otp_id", otpID.String()),
		)
		return fmt.Errorf("mark OTP %s as used: %w", otpID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("OTP %s not found", otpID.String())
	}

	return nil
}
