package request

// Action discriminator values accepted by the reset endpoint.
const (
	ActionSendResetEmail = "send_reset_email"
	ActionVerifyOTP      = "verify_otp"
	ActionResetPassword  = "reset_password"
)

// ResetRequest is the single body shape of the reset endpoint. Which
// fields are required depends on Action; per-action validation happens
// in the handler after dispatch.
type ResetRequest struct {
	Action   string `json:"action" validate:"required,oneof=send_reset_email verify_otp reset_password"`
	Email    string `json:"email" validate:"required,email"`
	UserName string `json:"user_name"`
	OTPCode  string `json:"otp_code"`
	Password string `json:"password"`
}
