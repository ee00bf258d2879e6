package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-stepup/pkg/client"
	"github.com/tendant/simple-stepup/pkg/device"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/otp"
	"github.com/tendant/simple-stepup/pkg/ratelimit"
	"github.com/tendant/simple-stepup/pkg/twofa"
)

type Handle struct {
	twoFaService twofa.TwoFactorService
	limiter      *ratelimit.Middleware
}

type Option func(*Handle)

// WithAttemptLimiter throttles the code sending and checking endpoints
func WithAttemptLimiter(limiter *ratelimit.Middleware) Option {
	return func(h *Handle) {
		h.limiter = limiter
	}
}

func NewHandle(twoFaService twofa.TwoFactorService, opts ...Option) Handle {
	h := Handle{
		twoFaService: twoFaService,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// TwoFaHandler returns a http.Handler for twofa API
func TwoFaHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)
	r.Post("/enable", h.Post2faEnable)
	r.Post("/disable", h.Post2faDisable)
	r.Post("/backup-codes/regenerate", h.PostRegenerateBackupCodes)
	r.Get("/required", h.GetRequired)

	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Handler)
		}
		r.Post("/otp/send", h.PostSendOTP)
		r.Post("/otp/verify", h.PostVerifyOTP)
		r.Post("/backup-codes/verify", h.PostVerifyBackupCode)
	})

	r.With(client.RequireRole("admin", "superadmin")).Put("/users/{userId}/force", h.PutForceEnabled)

	return r
}

type EnableRequest struct {
	UserID      string `json:"user_id,omitempty"`
	Method      string `json:"method"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

type EnableResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	BackupCodes []string `json:"backup_codes"`
}

type DisableRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type SendOTPResponse struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	Method      otp.Method `json:"method"`
	Destination string     `json:"destination"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

type VerifyOTPRequest struct {
	Code           string `json:"code"`
	RememberDevice bool   `json:"remember_device"`
	DeviceName     string `json:"device_name,omitempty"`
}

type VerifyBackupCodeRequest struct {
	Code string `json:"code"`
}

type VerifyBackupCodeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Remaining int    `json:"remaining"`
}

type RequiredResponse struct {
	Required bool `json:"required"`
}

type ForceEnabledRequest struct {
	Force bool `json:"force"`
}

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func authUserOrError(w http.ResponseWriter, r *http.Request) (*client.AuthUser, bool) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return nil, false
	}
	return authUser, true
}

// GetStatus reports the caller's enrollment
// (GET /status)
func (h Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	status, err := h.twoFaService.Status(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, status)
}

// Post2faEnable enrolls a user and returns the only copy of their backup codes
// (POST /enable)
func (h Handle) Post2faEnable(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	var data EnableRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}
	userID := data.UserID
	if userID == "" {
		userID = authUser.UserId
	}
	if !h.canManageTwoFactor(r, userID) {
		renderError(w, r, apperrors.Forbidden("you can only manage your own 2FA"))
		return
	}

	codes, err := h.twoFaService.Enable2FA(r.Context(), twofa.EnableRequest{
		UserID:      userID,
		Method:      otp.Method(data.Method),
		PhoneNumber: data.PhoneNumber,
		Email:       data.Email,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, EnableResponse{
		Status:      "success",
		Message:     "Two-factor authentication enabled. Store these backup codes somewhere safe.",
		BackupCodes: codes,
	})
}

// (POST /disable)
func (h Handle) Post2faDisable(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	var data DisableRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &data); err != nil {
			renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
			return
		}
	}
	userID := data.UserID
	if userID == "" {
		userID = authUser.UserId
	}
	if !h.canManageTwoFactor(r, userID) {
		renderError(w, r, apperrors.Forbidden("you can only manage your own 2FA"))
		return
	}

	if err := h.twoFaService.Disable2FA(r.Context(), userID); err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "Two-factor authentication disabled"})
}

// (POST /otp/send)
func (h Handle) PostSendOTP(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	result, err := h.twoFaService.SendOTP(r.Context(), authUser.UserId, device.ClientIP(r), r.UserAgent())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SendOTPResponse{
		Status:      "success",
		Message:     "Verification code sent",
		Method:      result.Method,
		Destination: result.Destination,
		ExpiresAt:   result.ExpiresAt,
	})
}

// PostVerifyOTP checks a code. With remember_device the calling device is
// trusted afterwards.
// (POST /otp/verify)
func (h Handle) PostVerifyOTP(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	var data VerifyOTPRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	err := h.twoFaService.VerifyOTP(r.Context(), twofa.VerifyRequest{
		UserID:         authUser.UserId,
		Code:           data.Code,
		RememberDevice: data.RememberDevice,
		DeviceID:       device.FingerprintFromRequest(r),
		DeviceName:     data.DeviceName,
		IPAddress:      device.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	h.resetAttempts(authUser.UserId)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "Code verified"})
}

// (POST /backup-codes/verify)
func (h Handle) PostVerifyBackupCode(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	var data VerifyBackupCodeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	remaining, err := h.twoFaService.VerifyBackupCode(r.Context(), authUser.UserId, data.Code)
	if err != nil {
		renderError(w, r, err)
		return
	}
	h.resetAttempts(authUser.UserId)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyBackupCodeResponse{Status: "success", Message: "Backup code accepted", Remaining: remaining})
}

// (POST /backup-codes/regenerate)
func (h Handle) PostRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	codes, err := h.twoFaService.RegenerateBackupCodes(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, EnableResponse{
		Status:      "success",
		Message:     "Backup codes regenerated. Previous codes no longer work.",
		BackupCodes: codes,
	})
}

// GetRequired tells a login flow whether the calling device must pass a
// second factor
// (GET /required)
func (h Handle) GetRequired(w http.ResponseWriter, r *http.Request) {
	authUser, ok := authUserOrError(w, r)
	if !ok {
		return
	}

	required, err := h.twoFaService.Is2FARequired(r.Context(), authUser.UserId, device.FingerprintFromRequest(r))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RequiredResponse{Required: required})
}

// (PUT /users/{userId}/force)
func (h Handle) PutForceEnabled(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var data ForceEnabledRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	if err := h.twoFaService.SetForceEnabled(r.Context(), userID, data.Force); err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "Two-factor policy updated"})
}

func (h Handle) resetAttempts(userID string) {
	if h.limiter != nil {
		h.limiter.ResetUser(userID)
	}
}

// canManageTwoFactor allows users to manage their own 2FA and admins to
// manage anyone's
func (h Handle) canManageTwoFactor(r *http.Request, targetUserID string) bool {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		slog.Error("Failed to get authenticated user from context")
		return false
	}

	if authUser.UserId == targetUserID {
		return true
	}

	if client.IsAdmin(authUser) {
		slog.Info("Admin user managing 2FA for another user",
			"adminUserId", authUser.UserId,
			"targetUserId", targetUserID,
			"roles", authUser.Roles)
		return true
	}

	slog.Warn("User attempted to manage another user's 2FA without permission",
		"userId", authUser.UserId,
		"targetUserId", targetUserID,
		"roles", authUser.Roles)
	return false
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("2FA request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Status:  "error",
		Message: apperrors.PublicMessage(err),
		Code:    string(code),
	})
}
