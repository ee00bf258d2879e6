package notification

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of business event a notification reports
type EventType string

const (
	EventLogin       EventType = "login"
	EventTransaction EventType = "transaction"
	EventLowBalance  EventType = "low_balance"
	EventSecurity    EventType = "security"
	EventSystem      EventType = "system"
)

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	switch t {
	case EventLogin, EventTransaction, EventLowBalance, EventSecurity, EventSystem:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel is a delivery path
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Event is a notification request
type Event struct {
	Type     EventType              `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	UserID   string                 `json:"user_id"`
	BranchID string                 `json:"branch_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Priority Priority               `json:"priority,omitempty"`
}

// Reasons a send was short-circuited before any channel was attempted
const (
	ReasonTypeDisabled   = "TypeDisabled"
	ReasonAboveThreshold = "AboveThreshold"
)

// ChannelResult is the outcome of one channel
type ChannelResult struct {
	Channel         Channel `json:"channel"`
	Success         bool    `json:"success"`
	Provider        string  `json:"provider,omitempty"`
	ProviderMessage string  `json:"provider_message,omitempty"`
	Error           string  `json:"error,omitempty"`

	err error
}

// SendResult is the outcome of a dispatch. Success is true when no channel
// was attempted or at least one attempted channel succeeded.
type SendResult struct {
	Success  bool            `json:"success"`
	Reason   string          `json:"reason,omitempty"`
	Channels []ChannelResult `json:"channels"`
	RecordID uuid.UUID       `json:"record_id,omitempty"`
}

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Record is the durable log entry of a notification
type Record struct {
	ID        uuid.UUID              `json:"id"`
	UserID    string                 `json:"user_id"`
	BranchID  string                 `json:"branch_id,omitempty"`
	Type      EventType              `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
	Priority  Priority               `json:"priority"`
	Status    Status                 `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}
