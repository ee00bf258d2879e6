package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-stepup/pkg/client"
	"github.com/tendant/simple-stepup/pkg/device"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
)

// DeviceHandler handles HTTP requests for trusted device management
type DeviceHandler struct {
	registry *device.Registry
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(registry *device.Registry) *DeviceHandler {
	return &DeviceHandler{
		registry: registry,
	}
}

// Routes returns the trusted device router; mount it behind AuthUserMiddleware
func (h *DeviceHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListDevices)
	r.Post("/", h.TrustCurrentDevice)
	r.Delete("/", h.RevokeAllDevices)
	r.Delete("/{deviceId}", h.RevokeDevice)
	return r
}

// TrustDeviceRequest represents the request body for trusting the calling device
type TrustDeviceRequest struct {
	DeviceName string `json:"device_name"`
}

// DeviceResponse is a trusted device as shown to its owner
type DeviceResponse struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
	Current    bool      `json:"current"`
}

// ListDevicesResponse represents the response body for listing devices
type ListDevicesResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Devices []DeviceResponse `json:"devices"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ListDevices handles listing the caller's trusted devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	devices, err := h.registry.List(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := []DeviceResponse{}
	if err := copier.Copy(&resp, &devices); err != nil {
		slog.Error("Failed to map devices", "error", err)
		renderError(w, r, err)
		return
	}
	current := device.FingerprintFromRequest(r)
	for i := range resp {
		resp[i].Current = resp[i].DeviceID == current
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListDevicesResponse{
		Status:  "success",
		Message: "Devices retrieved successfully",
		Devices: resp,
	})
}

// TrustCurrentDevice marks the calling device as trusted
func (h *DeviceHandler) TrustCurrentDevice(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	var req TrustDeviceRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
			return
		}
	}

	d, err := h.registry.Trust(r.Context(), authUser.UserId, device.FingerprintFromRequest(r), req.DeviceName, device.ClientIP(r), r.UserAgent())
	if err != nil {
		renderError(w, r, err)
		return
	}

	var resp DeviceResponse
	if err := copier.Copy(&resp, &d); err != nil {
		renderError(w, r, err)
		return
	}
	resp.Current = true

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// RevokeDevice removes one trusted device
func (h *DeviceHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	if err := h.registry.Revoke(r.Context(), authUser.UserId, chi.URLParam(r, "deviceId")); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "Device revoked"})
}

// RevokeAllDevices removes every trusted device of the caller
func (h *DeviceHandler) RevokeAllDevices(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	if _, err := h.registry.RevokeAll(r.Context(), authUser.UserId); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "All devices revoked"})
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Device request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Status:  "error",
		Message: apperrors.PublicMessage(err),
		Code:    string(code),
	})
}
