package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-stepup/pkg/client"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/notification"
	"github.com/tendant/simple-stepup/pkg/settings"
)

// AdminRoles may send notifications to other users and edit the system config
var AdminRoles = []string{"admin", "superadmin"}

type Handle struct {
	dispatcher *notification.Dispatcher
	settings   *settings.Resolver
	hub        *notification.PushHub
}

type Option func(*Handle)

// WithPushHub enables the /ws endpoint
func WithPushHub(hub *notification.PushHub) Option {
	return func(h *Handle) {
		h.hub = hub
	}
}

func NewHandle(dispatcher *notification.Dispatcher, resolver *settings.Resolver, opts ...Option) Handle {
	h := Handle{
		dispatcher: dispatcher,
		settings:   resolver,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Routes returns the notification router; mount it behind AuthUserMiddleware
func (h Handle) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListNotifications)
	r.Post("/", h.SendNotification)
	r.Post("/read-all", h.MarkAllAsRead)
	r.Get("/unread-count", h.CountUnread)
	r.Post("/{id}/read", h.MarkAsRead)
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)
	r.With(client.RequireRole(AdminRoles...)).Put("/system-config", h.SetSystemConfig)
	if h.hub != nil {
		r.Get("/ws", h.ServeWS)
	}
	return r
}

type SendNotificationRequest struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	UserID   string                 `json:"user_id,omitempty"`
	BranchID string                 `json:"branch_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Priority string                 `json:"priority,omitempty"`
}

type SendNotificationResponse struct {
	Status  string                  `json:"status"`
	Message string                  `json:"message"`
	Result  notification.SendResult `json:"result"`
}

type NotificationResponse struct {
	ID        uuid.UUID              `json:"id"`
	BranchID  string                 `json:"branch_id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Priority  string                 `json:"priority"`
	Status    string                 `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

// SettingsResponse shows the caller's settings. Credentials are reported as
// present or absent only.
type SettingsResponse struct {
	EmailEnabled        bool    `json:"email_enabled"`
	SMSEnabled          bool    `json:"sms_enabled"`
	PushEnabled         bool    `json:"push_enabled"`
	LoginAlerts         bool    `json:"login_alerts"`
	TransactionAlerts   bool    `json:"transaction_alerts"`
	LowBalanceAlerts    bool    `json:"low_balance_alerts"`
	LowBalanceThreshold float64 `json:"low_balance_threshold"`
	EmailAddress        string  `json:"email_address"`
	PhoneNumber         string  `json:"phone_number"`
	SMSProvider         string  `json:"sms_provider"`
	SMSSenderID         string  `json:"sms_sender_id"`
	HasSMSAPIKey        bool    `json:"has_sms_api_key"`
}

type SystemConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
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

func (h Handle) ListNotifications(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	query := r.URL.Query()
	filter := notification.ListFilter{
		Type:   notification.EventType(query.Get("type")),
		Status: notification.Status(query.Get("status")),
	}
	var err error
	if v := query.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			renderError(w, r, apperrors.Validation("limit", "must be a number"))
			return
		}
	}
	if v := query.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			renderError(w, r, apperrors.Validation("offset", "must be a number"))
			return
		}
	}
	filter = filter.Normalize()

	records, err := h.dispatcher.List(r.Context(), authUser.UserId, filter)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := []NotificationResponse{}
	if err := copier.Copy(&resp, &records); err != nil {
		slog.Error("Failed to map notifications", "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListNotificationsResponse{Notifications: resp, Limit: filter.Limit, Offset: filter.Offset})
}

// SendNotification dispatches an event. Only admins may target another user.
func (h Handle) SendNotification(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	var req SendNotificationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}
	if req.UserID == "" {
		req.UserID = authUser.UserId
	}
	if req.UserID != authUser.UserId && !client.IsAdmin(authUser) {
		renderError(w, r, apperrors.Forbidden("cannot notify another user"))
		return
	}

	result, err := h.dispatcher.Send(r.Context(), notification.Event{
		Type:     notification.EventType(req.Type),
		Title:    req.Title,
		Message:  req.Message,
		UserID:   req.UserID,
		BranchID: req.BranchID,
		Metadata: req.Metadata,
		Priority: notification.Priority(req.Priority),
	})
	if apperrors.IsCode(err, apperrors.ErrCodeNotificationType) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, SendNotificationResponse{Status: "error", Message: apperrors.PublicMessage(err), Result: result})
		return
	}
	if err != nil {
		renderError(w, r, err)
		return
	}

	message := "Notification sent"
	if !result.Success {
		message = "Notification was not delivered"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SendNotificationResponse{Status: "success", Message: message, Result: result})
}

func (h Handle) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, apperrors.Validation("id", "must be a uuid"))
		return
	}
	if err := h.dispatcher.MarkAsRead(r.Context(), id, authUser.UserId); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "Notification marked as read"})
}

func (h Handle) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	n, err := h.dispatcher.MarkAllAsRead(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CountResponse{Count: n})
}

func (h Handle) CountUnread(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	n, err := h.dispatcher.CountUnread(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, CountResponse{Count: n})
}

func (h Handle) GetSettings(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	s, err := h.settings.GetSettings(r.Context(), authUser.UserId)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSettings(w, r, s)
}

func (h Handle) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}

	var patch settings.Patch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	s, err := h.settings.UpdateSettings(r.Context(), authUser.UserId, patch)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSettings(w, r, s)
}

func renderSettings(w http.ResponseWriter, r *http.Request, s settings.NotificationSettings) {
	var resp SettingsResponse
	if err := copier.Copy(&resp, &s); err != nil {
		renderError(w, r, err)
		return
	}
	resp.HasSMSAPIKey = s.SMSAPIKey != ""

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h Handle) SetSystemConfig(w http.ResponseWriter, r *http.Request) {
	authUser, _ := client.GetAuthUser(r.Context())

	var req SystemConfigRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}
	if err := h.settings.SetSystemConfig(r.Context(), req.Key, req.Value); err != nil {
		renderError(w, r, err)
		return
	}
	slog.Info("System config changed", "key", req.Key, "by", authUser.UserId)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Status: "success", Message: "System config updated"})
}

// ServeWS opens a push session for the caller
func (h Handle) ServeWS(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		renderError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "unauthorized"))
		return
	}
	h.hub.ServeWS(w, r, authUser.UserId)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Notification request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Status:  "error",
		Message: apperrors.PublicMessage(err),
		Code:    string(code),
	})
}
