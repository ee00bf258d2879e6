package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-stepup/pkg/utils"
)

const QueryStringProviderName = "query_get"

// QueryStringProvider sends with a GET request carrying everything in the query string.
// The gateway answers {"code": <int>, "description": "..."} where code 0 means accepted.
type QueryStringProvider struct {
	url    string
	client *http.Client
}

type queryStringResponse struct {
	Code        json.RawMessage `json:"code"`
	Description string          `json:"description"`
}

// NewQueryStringProvider creates the adapter for the query-string gateway at baseURL
func NewQueryStringProvider(baseURL string, opts ...Option) *QueryStringProvider {
	o := applyOptions(opts)
	return &QueryStringProvider{url: baseURL, client: o.client}
}

func (p *QueryStringProvider) Name() string {
	return QueryStringProviderName
}

func (p *QueryStringProvider) Send(ctx context.Context, phone, message string, creds Credentials) Result {
	result := Result{Provider: p.Name()}
	if creds.APIKey == "" {
		result.Err = errors.New("missing api key")
		return result
	}

	endpoint, err := url.Parse(p.url)
	if err != nil {
		result.Err = fmt.Errorf("invalid gateway url: %w", err)
		return result
	}
	q := endpoint.Query()
	q.Set("key", creds.APIKey)
	if creds.APISecret != "" {
		q.Set("secret", creds.APISecret)
	}
	q.Set("to", phone)
	q.Set("msg", message)
	q.Set("sender_id", creds.SenderID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		result.Err = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		// the url carries the api key, so only the transport cause is logged
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		slog.Error("SMS gateway request failed", "provider", p.Name(), "to", utils.MaskPhone(phone), "err", err)
		result.Err = fmt.Errorf("http error: %w", err)
		return result
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed queryStringResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		result.Err = fmt.Errorf("unexpected gateway response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return result
	}
	result.ProviderMessage = parsed.Description

	code, err := parseStatusCode(parsed.Code)
	if err != nil {
		result.Err = fmt.Errorf("unexpected gateway status code: %w", err)
		return result
	}
	if code != 0 {
		reason := parsed.Description
		if reason == "" {
			reason = fmt.Sprintf("gateway code %d", code)
		}
		slog.Warn("SMS gateway rejected message", "provider", p.Name(), "to", utils.MaskPhone(phone), "code", code, "reason", reason)
		result.Err = errors.New(reason)
		return result
	}

	slog.Info("SMS sent", "provider", p.Name(), "to", utils.MaskPhone(phone), "duration", time.Since(start))
	result.Success = true
	return result
}

// parseStatusCode accepts the code as a JSON number or a quoted number.
func parseStatusCode(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, errors.New("missing code")
	}
	return strconv.Atoi(s)
}
