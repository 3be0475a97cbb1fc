package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"qwiken-auth/internal/dto/request"
	"qwiken-auth/internal/usecase"
	"qwiken-auth/pkg/utils"

	"go.uber.org/zap"
)

type ResetHandler struct {
	service usecase.ResetService
	log     *zap.Logger
}

func NewResetHandler(service usecase.ResetService, log *zap.Logger) *ResetHandler {
	return &ResetHandler{
		service: service,
		log:     log,
	}
}

// Handle serves POST /api/password-reset. One endpoint, three actions,
// dispatched on the body's action field. Every failure collapses into
// the uniform {"success": false, "error": ...} envelope with HTTP 500.
func (h *ResetHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req request.ResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseError(w, "Invalid request body")
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseError(w, utils.FormatValidationErrors(validationErrors))
		return
	}

	switch req.Action {
	case request.ActionSendResetEmail:
		h.sendResetEmail(w, r, &req)
	case request.ActionVerifyOTP:
		h.verifyOTP(w, r, &req)
	case request.ActionResetPassword:
		h.resetPassword(w, r, &req)
	default:
		utils.ResponseError(w, "Unknown action: "+req.Action)
	}
}

func (h *ResetHandler) sendResetEmail(w http.ResponseWriter, r *http.Request, req *request.ResetRequest) {
	if err := h.service.Issue(r.Context(), req.Email, req.UserName); err != nil {
		h.handleServiceError(w, err, "send reset email")
		return
	}

	utils.ResponseSuccess(w, "Password reset code sent to your email")
}

func (h *ResetHandler) verifyOTP(w http.ResponseWriter, r *http.Request, req *request.ResetRequest) {
	if req.OTPCode == "" {
		utils.ResponseError(w, "otp_code is required")
		return
	}

	if err := h.service.Verify(r.Context(), req.Email, req.OTPCode); err != nil {
		h.handleServiceError(w, err, "verify OTP")
		return
	}

	utils.ResponseSuccess(w, "OTP verified")
}

func (h *ResetHandler) resetPassword(w http.ResponseWriter, r *http.Request, req *request.ResetRequest) {
	if req.OTPCode == "" {
		utils.ResponseError(w, "otp_code is required")
		return
	}
	if req.Password == "" {
		utils.ResponseError(w, "password is required")
		return
	}

	if err := h.service.Reset(r.Context(), req.Email, req.OTPCode, req.Password); err != nil {
		h.handleServiceError(w, err, "reset password")
		return
	}

	utils.ResponseSuccess(w, "Password updated successfully")
}

// handleServiceError logs by kind and passes the message through. The
// client shows the error string as-is, so sentinel messages double as
// user-facing copy.
func (h *ResetHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidOrExpiredOTP),
		errors.Is(err, usecase.ErrOTPNotVerified),
		errors.Is(err, usecase.ErrWeakPassword),
		errors.Is(err, usecase.ErrUserNotFound):
		h.log.Warn(operation+" rejected", zap.Error(err))
		utils.ResponseError(w, err.Error())

	case errors.Is(err, usecase.ErrCredentialUpdate):
		h.log.Error(operation+" failed", zap.Error(err))
		utils.ResponseError(w, err.Error())

	default:
		h.log.Error("Failed to "+operation, zap.Error(err))
		utils.ResponseError(w, err.Error())
	}
}
