package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-stepup/pkg/utils"
)

const BearerJSONProviderName = "bearer_json"

// BearerJSONProvider posts a JSON message with a bearer token.
// The gateway reports success with {"status": "success"}.
type BearerJSONProvider struct {
	url    string
	client *http.Client
}

type bearerJSONRequest struct {
	Sender     string   `json:"sender"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

type bearerJSONResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewBearerJSONProvider creates the adapter for the JSON gateway at url
func NewBearerJSONProvider(url string, opts ...Option) *BearerJSONProvider {
	o := applyOptions(opts)
	return &BearerJSONProvider{url: url, client: o.client}
}

func (p *BearerJSONProvider) Name() string {
	return BearerJSONProviderName
}

func (p *BearerJSONProvider) Send(ctx context.Context, phone, message string, creds Credentials) Result {
	result := Result{Provider: p.Name()}
	if creds.APIKey == "" {
		result.Err = errors.New("missing api key")
		return result
	}

	payload, err := json.Marshal(bearerJSONRequest{
		Sender:     creds.SenderID,
		Message:    message,
		Recipients: []string{phone},
	})
	if err != nil {
		result.Err = fmt.Errorf("failed to marshal sms payload: %w", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		result.Err = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		slog.Error("SMS gateway request failed", "provider", p.Name(), "to", utils.MaskPhone(phone), "err", err)
		result.Err = fmt.Errorf("http error: %w", err)
		return result
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed bearerJSONResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		result.Err = fmt.Errorf("unexpected gateway response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return result
	}
	result.ProviderMessage = parsed.Message

	if resp.StatusCode/100 != 2 || !strings.EqualFold(parsed.Status, "success") {
		reason := parsed.Message
		if reason == "" {
			reason = fmt.Sprintf("gateway status %q", parsed.Status)
		}
		slog.Warn("SMS gateway rejected message", "provider", p.Name(), "to", utils.MaskPhone(phone), "httpStatus", resp.StatusCode, "reason", reason)
		result.Err = errors.New(reason)
		return result
	}

	slog.Info("SMS sent", "provider", p.Name(), "to", utils.MaskPhone(phone), "duration", time.Since(start))
	result.Success = true
	return result
}
