package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/settings"
	"github.com/tendant/simple-stepup/pkg/sms"
	"github.com/tendant/simple-stepup/pkg/utils"
)

const (
	defaultSendTimeout = 10 * time.Second
	DefaultCountryCode = "233"

	noActiveSessions = "no active sessions"
)

// ConfigResolver produces the effective configuration of a user
type ConfigResolver interface {
	Resolve(ctx context.Context, userID string) settings.EffectiveConfig
}

// PushSender delivers a payload to the live sessions of a user and reports
// how many sessions received it
type PushSender interface {
	Push(ctx context.Context, userID string, payload interface{}) (int, error)
}

// PushPayload is the message written to push sessions
type PushPayload struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  Priority               `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Option func(*Dispatcher)

func WithEmailSender(sender EmailSender) Option {
	return func(d *Dispatcher) {
		d.email = sender
	}
}

func WithPushSender(sender PushSender) Option {
	return func(d *Dispatcher) {
		d.push = sender
	}
}

// WithDefaultSMSProvider names the gateway used when neither the user nor the
// system configuration picks one
func WithDefaultSMSProvider(name string) Option {
	return func(d *Dispatcher) {
		d.defaultProvider = name
	}
}

func WithCountryCode(code string) Option {
	return func(d *Dispatcher) {
		d.countryCode = code
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithEmailTemplate(tmpl NoticeTemplate) Option {
	return func(d *Dispatcher) {
		d.template = tmpl
	}
}

// Dispatcher fans a notification out to the enabled channels of a user and
// keeps a record of it
type Dispatcher struct {
	resolver        ConfigResolver
	providers       *sms.Registry
	records         RecordRepository
	email           EmailSender
	push            PushSender
	defaultProvider string
	countryCode     string
	template        NoticeTemplate
	now             func() time.Time
}

func NewDispatcher(resolver ConfigResolver, providers *sms.Registry, records RecordRepository, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:    resolver,
		providers:   providers,
		records:     records,
		countryCode: DefaultCountryCode,
		template:    DefaultEventTemplate(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.providers == nil {
		d.providers = sms.NewRegistry()
	}
	return d
}

func validateEvent(event Event) error {
	if strings.TrimSpace(event.UserID) == "" {
		return apperrors.Validation("user_id", "is required")
	}
	if !event.Type.Valid() {
		return apperrors.Validation("type", fmt.Sprintf("unknown notification type %q", event.Type))
	}
	if strings.TrimSpace(event.Title) == "" && strings.TrimSpace(event.Message) == "" {
		return apperrors.Validation("message", "title or message is required")
	}
	return nil
}

// typeAllowed reports whether the alert toggle for the event type is on.
// Security and system events have no toggle.
func typeAllowed(cfg settings.EffectiveConfig, t EventType) bool {
	switch t {
	case EventLogin:
		return cfg.LoginAlerts
	case EventTransaction:
		return cfg.TransactionAlerts
	case EventLowBalance:
		return cfg.LowBalanceAlerts
	default:
		return true
	}
}

// balanceFromMetadata reads a numeric "balance" entry
func balanceFromMetadata(metadata map[string]interface{}) (float64, bool) {
	raw, ok := metadata["balance"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Send delivers the event through every enabled channel that has contact
// information. A TypeDisabled error is returned together with a result whose
// Reason is set, and no channel is attempted. Channel failures are reported in
// the result and never returned as the error.
func (d *Dispatcher) Send(ctx context.Context, event Event) (SendResult, error) {
	if err := validateEvent(event); err != nil {
		return SendResult{}, err
	}
	if event.Priority == "" {
		event.Priority = PriorityNormal
	}

	cfg := d.resolver.Resolve(ctx, event.UserID)

	if !typeAllowed(cfg, event.Type) {
		slog.Info("Notification type disabled for user", "userId", event.UserID, "type", event.Type)
		return SendResult{Success: false, Reason: ReasonTypeDisabled, Channels: []ChannelResult{}}, apperrors.TypeDisabled(string(event.Type))
	}

	if event.Type == EventLowBalance && cfg.LowBalanceThreshold > 0 {
		if balance, ok := balanceFromMetadata(event.Metadata); ok && balance > cfg.LowBalanceThreshold {
			slog.Info("Balance above alert threshold, skipping", "userId", event.UserID, "threshold", cfg.LowBalanceThreshold)
			return SendResult{Success: false, Reason: ReasonAboveThreshold, Channels: []ChannelResult{}}, nil
		}
	}

	record := Record{
		ID:        uuid.New(),
		UserID:    event.UserID,
		BranchID:  event.BranchID,
		Type:      event.Type,
		Title:     event.Title,
		Message:   event.Message,
		Metadata:  event.Metadata,
		Priority:  event.Priority,
		Status:    StatusUnread,
		CreatedAt: d.now(),
	}

	channels := d.deliver(ctx, cfg, event, record)

	result := SendResult{Success: true, Channels: channels, RecordID: record.ID}
	if len(channels) > 0 {
		result.Success = false
		for _, c := range channels {
			if c.Success {
				result.Success = true
				break
			}
		}
	}

	// delivery outcome stands even when the log write fails
	if _, err := d.records.CreateRecord(ctx, record); err != nil {
		slog.Error("Failed to persist notification record", "userId", event.UserID, "recordId", record.ID, "err", err)
		result.RecordID = uuid.Nil
	}

	slog.Info("Notification dispatched", "userId", event.UserID, "type", event.Type, "success", result.Success, "channels", len(channels))
	return result, nil
}

// deliver runs every applicable channel concurrently. Results keep the
// email, sms, push order.
func (d *Dispatcher) deliver(ctx context.Context, cfg settings.EffectiveConfig, event Event, record Record) []ChannelResult {
	type job struct {
		channel Channel
		run     func(context.Context) ChannelResult
	}

	var jobs []job
	if cfg.EmailEnabled && cfg.Email != "" {
		jobs = append(jobs, job{ChannelEmail, func(ctx context.Context) ChannelResult {
			return d.sendEventEmail(ctx, cfg.Email, event)
		}})
	}
	if cfg.SMSEnabled && cfg.Phone != "" {
		jobs = append(jobs, job{ChannelSMS, func(ctx context.Context) ChannelResult {
			return d.sendSMS(ctx, cfg, cfg.Phone, smsText(event))
		}})
	}
	if cfg.PushEnabled {
		jobs = append(jobs, job{ChannelPush, func(ctx context.Context) ChannelResult {
			return d.sendPush(ctx, record)
		}})
	}

	// a failed channel never cancels the others
	results := make([]ChannelResult, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			results[i] = j.run(ctx)
			results[i].Channel = j.channel
		}(i, j)
	}
	wg.Wait()
	return results
}

func smsText(event Event) string {
	if event.Title == "" {
		return event.Message
	}
	if event.Message == "" {
		return event.Title
	}
	return event.Title + ": " + event.Message
}

func channelFailure(channel Channel, provider string, err error) ChannelResult {
	return ChannelResult{Channel: channel, Success: false, Provider: provider, Error: err.Error(), err: err}
}

func (d *Dispatcher) sendEventEmail(ctx context.Context, to string, event Event) ChannelResult {
	msg, err := d.template.Render(event)
	if err != nil {
		return channelFailure(ChannelEmail, "smtp", err)
	}
	return d.sendEmail(ctx, to, msg)
}

func (d *Dispatcher) sendEmail(ctx context.Context, to string, msg EmailMessage) ChannelResult {
	if d.email == nil {
		return channelFailure(ChannelEmail, "", apperrors.Configuration("email delivery is not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	defer cancel()

	if err := d.email.SendEmail(ctx, to, msg); err != nil {
		return channelFailure(ChannelEmail, "smtp", apperrors.Provider("smtp", err))
	}
	return ChannelResult{Channel: ChannelEmail, Success: true, Provider: "smtp"}
}

// sendSMS picks the gateway from the resolved credentials and sends once
func (d *Dispatcher) sendSMS(ctx context.Context, cfg settings.EffectiveConfig, phone, message string) ChannelResult {
	creds := cfg.SMS
	name := utils.FirstNonEmpty(creds.Provider, d.defaultProvider)
	if name == "" {
		return channelFailure(ChannelSMS, "", apperrors.Configuration("no sms provider configured"))
	}
	provider, ok := d.providers.Get(name)
	if !ok {
		return channelFailure(ChannelSMS, name, apperrors.Configuration("unknown sms provider "+name))
	}
	if creds.APIKey == "" {
		return channelFailure(ChannelSMS, name, apperrors.Configuration("sms api key is not configured"))
	}

	normalized, err := utils.NormalizePhone(phone, d.countryCode)
	if err != nil {
		return channelFailure(ChannelSMS, name, apperrors.Validation("phone_number", err.Error()))
	}

	res := provider.Send(ctx, normalized, message, creds)
	if !res.Success {
		err := res.Err
		if err == nil {
			err = errors.New("gateway reported failure")
		}
		failure := channelFailure(ChannelSMS, res.Provider, apperrors.Provider(res.Provider, err))
		failure.ProviderMessage = res.ProviderMessage
		return failure
	}
	return ChannelResult{Channel: ChannelSMS, Success: true, Provider: res.Provider, ProviderMessage: res.ProviderMessage}
}

func (d *Dispatcher) sendPush(ctx context.Context, record Record) ChannelResult {
	if d.push == nil {
		return ChannelResult{Channel: ChannelPush, Success: true, ProviderMessage: noActiveSessions}
	}
	n, err := d.push.Push(ctx, record.UserID, PushPayload{
		ID:        record.ID,
		Type:      record.Type,
		Title:     record.Title,
		Message:   record.Message,
		Priority:  record.Priority,
		Metadata:  record.Metadata,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return channelFailure(ChannelPush, "websocket", err)
	}
	if n == 0 {
		return ChannelResult{Channel: ChannelPush, Success: true, Provider: "websocket", ProviderMessage: noActiveSessions}
	}
	return ChannelResult{Channel: ChannelPush, Success: true, Provider: "websocket", ProviderMessage: fmt.Sprintf("delivered to %d sessions", n)}
}

// SendSMS sends a one-off message, such as a verification code, through the
// user's resolved gateway. Nothing is recorded.
func (d *Dispatcher) SendSMS(ctx context.Context, userID, phone, message string) error {
	cfg := d.resolver.Resolve(ctx, userID)
	res := d.sendSMS(ctx, cfg, phone, message)
	if res.Success {
		return nil
	}
	return channelError(res)
}

// SendEmail sends a one-off plain text email. Nothing is recorded.
func (d *Dispatcher) SendEmail(ctx context.Context, userID, email, subject, body string) error {
	if strings.TrimSpace(email) == "" {
		return apperrors.Configuration("no email address for user")
	}
	res := d.sendEmail(ctx, email, EmailMessage{Subject: subject, Text: body})
	if res.Success {
		return nil
	}
	return channelError(res)
}

func channelError(res ChannelResult) error {
	if res.err != nil {
		return res.err
	}
	return errors.New(res.Error)
}

// List returns the records of a user, newest first
func (d *Dispatcher) List(ctx context.Context, userID string, filter ListFilter) ([]Record, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.Validation("type", fmt.Sprintf("unknown notification type %q", filter.Type))
	}
	if filter.Status != "" && filter.Status != StatusRead && filter.Status != StatusUnread {
		return nil, apperrors.Validation("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	records, err := d.records.ListRecords(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to list notifications")
	}
	return records, nil
}

// MarkAsRead marks one record of the user as read
func (d *Dispatcher) MarkAsRead(ctx context.Context, id uuid.UUID, userID string) error {
	found, err := d.records.MarkAsRead(ctx, id, userID, d.now())
	if err != nil {
		return apperrors.Persistence(err, "failed to mark notification as read")
	}
	if !found {
		return apperrors.NotFound("notification", id.String())
	}
	return nil
}

func (d *Dispatcher) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := d.records.MarkAllAsRead(ctx, userID, d.now())
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to mark notifications as read")
	}
	return n, nil
}

func (d *Dispatcher) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := d.records.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to count unread notifications")
	}
	return n, nil
}
