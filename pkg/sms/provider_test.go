package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{APIKey: "key-123", APISecret: "secret-456", SenderID: "STEPUP"}

func TestBearerJSONProvider_Success(t *testing.T) {
	var gotAuth string
	var gotBody bearerJSONRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","message":"queued"}`))
	}))
	defer srv.Close()

	p := NewBearerJSONProvider(srv.URL)
	res := p.Send(context.Background(), "233241234567", "hello", testCreds)

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, BearerJSONProviderName, res.Provider)
	assert.Equal(t, "queued", res.ProviderMessage)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, []string{"233241234567"}, gotBody.Recipients)
	assert.Equal(t, "STEPUP", gotBody.Sender)
	assert.Equal(t, "hello", gotBody.Message)
}

func TestBearerJSONProvider_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","message":"invalid api key"}`))
	}))
	defer srv.Close()

	res := NewBearerJSONProvider(srv.URL).Send(context.Background(), "233241234567", "hello", testCreds)
	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Equal(t, "invalid api key", res.Err.Error())
}

func TestBearerJSONProvider_NonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	res := NewBearerJSONProvider(srv.URL).Send(context.Background(), "233241234567", "hello", testCreds)
	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "upstream down")
}

func TestBearerJSONProvider_MissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	res := NewBearerJSONProvider(srv.URL).Send(context.Background(), "233241234567", "hello", Credentials{})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.Equal(t, 0, calls)
}

func TestBearerJSONProvider_TimeoutIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	p := NewBearerJSONProvider(srv.URL, WithTimeout(50*time.Millisecond))
	res := p.Send(context.Background(), "233241234567", "hello", testCreds)
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, calls)
}

func TestQueryStringProvider_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "key-123", q.Get("key"))
		assert.Equal(t, "secret-456", q.Get("secret"))
		assert.Equal(t, "233241234567", q.Get("to"))
		assert.Equal(t, "hello world", q.Get("msg"))
		assert.Equal(t, "STEPUP", q.Get("sender_id"))
		w.Write([]byte(`{"code":0,"description":"Message submitted"}`))
	}))
	defer srv.Close()

	res := NewQueryStringProvider(srv.URL).Send(context.Background(), "233241234567", "hello world", testCreds)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, "Message submitted", res.ProviderMessage)
}

func TestQueryStringProvider_StatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
		errText string
	}{
		{name: "numeric zero", body: `{"code":0,"description":"ok"}`, success: true},
		{name: "quoted zero", body: `{"code":"0","description":"ok"}`, success: true},
		{name: "insufficient balance", body: `{"code":104,"description":"Insufficient balance"}`, errText: "Insufficient balance"},
		{name: "code without description", body: `{"code":"103"}`, errText: "gateway code 103"},
		{name: "missing code", body: `{"description":"??"}`, errText: "missing code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res := NewQueryStringProvider(srv.URL).Send(context.Background(), "233241234567", "hi", testCreds)
			assert.Equal(t, tt.success, res.Success)
			if tt.success {
				assert.NoError(t, res.Err)
				return
			}
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.errText)
		})
	}
}

func TestQueryStringProvider_KeepsExistingQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "send", r.URL.Query().Get("action"))
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	res := NewQueryStringProvider(srv.URL+"?action=send").Send(context.Background(), "233241234567", "hi", testCreds)
	assert.True(t, res.Success)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewBearerJSONProvider("http://a"), NewQueryStringProvider("http://b"))

	p, ok := r.Get(QueryStringProviderName)
	require.True(t, ok)
	assert.Equal(t, QueryStringProviderName, p.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{BearerJSONProviderName, QueryStringProviderName}, r.Names())
}
