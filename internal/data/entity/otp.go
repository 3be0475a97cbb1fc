package entity

import (
	"time"
)

// PasswordResetOTP is one issued reset code. A record moves through
// created -> verified (verified_at set) -> consumed (is_used true);
// expiry is governed solely by expires_at and never mutated.
type PasswordResetOTP struct {
	BaseSimple
	Email      string     `db:"email"`
	OTPCode    string     `db:"otp_code"`
	ExpiresAt  time.Time  `db:"expires_at"`
	IsUsed     bool       `db:"is_used"`
	Attempts   int        `db:"attempts"`
	VerifiedAt *time.Time `db:"verified_at"`
}
