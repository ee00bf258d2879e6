package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-stepup/pkg/client"
	"github.com/tendant/simple-stepup/pkg/notification"
	"github.com/tendant/simple-stepup/pkg/settings"
	"github.com/tendant/simple-stepup/pkg/sms"
)

type recordingEmail struct {
	to []string
}

func (e *recordingEmail) SendEmail(ctx context.Context, to string, msg notification.EmailMessage) error {
	e.to = append(e.to, to)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *settings.InMemRepository, *recordingEmail) {
	t.Helper()
	store := settings.NewInMemRepository()
	require.NoError(t, store.UpsertProfile(context.Background(), settings.Profile{UserID: "u1", Email: "ama@example.com"}))
	resolver := settings.NewResolver(settings.Repositories{Settings: store, Profiles: store, System: store})

	email := &recordingEmail{}
	dispatcher := notification.NewDispatcher(resolver, sms.NewRegistry(), notification.NewInMemRecordRepository(),
		notification.WithEmailSender(email))
	return NewHandle(dispatcher, resolver).Routes(), store, email
}

func newRequest(method, target string, body interface{}, user *client.AuthUser) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(client.WithAuthUser(req.Context(), user))
	}
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandle_SendListRead(t *testing.T) {
	router, _, email := newTestRouter(t)
	user := &client.AuthUser{UserId: "u1"}

	rr := serve(router, newRequest(http.MethodPost, "/", SendNotificationRequest{Type: "login", Title: "New sign-in", Message: "Chrome on Windows"}, user))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sent SendNotificationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sent))
	assert.True(t, sent.Result.Success)
	assert.Equal(t, []string{"ama@example.com"}, email.to)

	rr = serve(router, newRequest(http.MethodGet, "/unread-count", nil, user))
	require.Equal(t, http.StatusOK, rr.Code)
	var count CountResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&count))
	assert.Equal(t, int64(1), count.Count)

	rr = serve(router, newRequest(http.MethodGet, "/?type=login&limit=5", nil, user))
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListNotificationsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, "login", list.Notifications[0].Type)
	assert.Equal(t, "unread", list.Notifications[0].Status)
	assert.Equal(t, 5, list.Limit)

	rr = serve(router, newRequest(http.MethodPost, "/"+list.Notifications[0].ID.String()+"/read", nil, &client.AuthUser{UserId: "u2"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, newRequest(http.MethodPost, "/"+list.Notifications[0].ID.String()+"/read", nil, user))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, newRequest(http.MethodPost, "/not-a-uuid/read", nil, user))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, newRequest(http.MethodGet, "/?limit=abc", nil, user))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandle_TypeDisabled(t *testing.T) {
	router, _, email := newTestRouter(t)
	user := &client.AuthUser{UserId: "u1"}
	off := false

	rr := serve(router, newRequest(http.MethodPatch, "/settings", settings.Patch{LoginAlerts: &off}, user))
	require.Equal(t, http.StatusOK, rr.Code)
	var s SettingsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&s))
	assert.False(t, s.LoginAlerts)
	assert.Equal(t, "ama@example.com", s.EmailAddress)

	rr = serve(router, newRequest(http.MethodPost, "/", SendNotificationRequest{Type: "login", Title: "New sign-in"}, user))
	require.Equal(t, http.StatusConflict, rr.Code)
	var sent SendNotificationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sent))
	assert.Equal(t, notification.ReasonTypeDisabled, sent.Result.Reason)
	assert.Empty(t, email.to)
}

func TestHandle_SendToOtherUserNeedsAdmin(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body := SendNotificationRequest{Type: "system", Title: "Maintenance", UserID: "u1"}

	rr := serve(router, newRequest(http.MethodPost, "/", body, &client.AuthUser{UserId: "u2"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(router, newRequest(http.MethodPost, "/", body, &client.AuthUser{UserId: "u2", Roles: []string{"admin"}}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandle_SystemConfig(t *testing.T) {
	router, store, _ := newTestRouter(t)
	body := SystemConfigRequest{Key: settings.KeySMSAPIKey, Value: "system-key"}

	rr := serve(router, newRequest(http.MethodPut, "/system-config", body, &client.AuthUser{UserId: "u1"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(router, newRequest(http.MethodPut, "/system-config", body, &client.AuthUser{UserId: "root", Roles: []string{"admin"}}))
	require.Equal(t, http.StatusOK, rr.Code)

	config, err := store.GetSystemConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "system-key", config[settings.KeySMSAPIKey])
}

func TestHandle_Unauthenticated(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := serve(router, newRequest(http.MethodGet, "/", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
