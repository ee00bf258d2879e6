package settings

import (
	"strings"
	"time"

	"github.com/tendant/simple-stepup/pkg/sms"
	"github.com/tendant/simple-stepup/pkg/utils"
)

// System config keys holding the fallback SMS provider credentials
const (
	KeySMSProvider  = "sms_provider"
	KeySMSAPIKey    = "sms_api_key"
	KeySMSAPISecret = "sms_api_secret"
	KeySMSSenderID  = "sms_sender_id"
)

// NotificationSettings is the per-user row of channel toggles, alert toggles,
// contact overrides and optional SMS credential overrides.
type NotificationSettings struct {
	UserID string `json:"user_id"`

	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
	PushEnabled  bool `json:"push_enabled"`

	LoginAlerts         bool    `json:"login_alerts"`
	TransactionAlerts   bool    `json:"transaction_alerts"`
	LowBalanceAlerts    bool    `json:"low_balance_alerts"`
	LowBalanceThreshold float64 `json:"low_balance_threshold"`

	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`

	SMSProvider  string `json:"sms_provider,omitempty"`
	SMSAPIKey    string `json:"-"`
	SMSAPISecret string `json:"-"`
	SMSSenderID  string `json:"sms_sender_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the contact information owned by the user account.
type Profile struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// EffectiveConfig is the fully resolved configuration used for one delivery.
type EffectiveConfig struct {
	EmailEnabled bool
	SMSEnabled   bool
	PushEnabled  bool

	LoginAlerts         bool
	TransactionAlerts   bool
	LowBalanceAlerts    bool
	LowBalanceThreshold float64

	Email string
	Phone string

	SMS sms.Credentials

	// Fallback is set when resolution failed and hard defaults were returned
	Fallback bool
}

// DefaultEffectiveConfig is returned when any lookup fails.
func DefaultEffectiveConfig() EffectiveConfig {
	return EffectiveConfig{
		EmailEnabled:      true,
		SMSEnabled:        true,
		PushEnabled:       false,
		LoginAlerts:       true,
		TransactionAlerts: true,
		LowBalanceAlerts:  true,
		Fallback:          true,
	}
}

// DefaultSettings builds the row seeded for a user on first resolution.
// Contact fields are copied from the profile.
func DefaultSettings(userID string, profile Profile) NotificationSettings {
	return NotificationSettings{
		UserID:            userID,
		EmailEnabled:      true,
		SMSEnabled:        true,
		PushEnabled:       false,
		LoginAlerts:       true,
		TransactionAlerts: true,
		LowBalanceAlerts:  true,
		EmailAddress:      strings.TrimSpace(profile.Email),
		PhoneNumber:       strings.TrimSpace(profile.PhoneNumber),
	}
}

// Resolve merges the three configuration layers. Highest priority first: the
// settings row, then the profile for contact fields only, then the system
// key/value store for provider credentials only. A nil settings row resolves
// to the seeded defaults for the profile.
func Resolve(userSettings *NotificationSettings, profile Profile, system map[string]string) EffectiveConfig {
	s := DefaultSettings(profile.UserID, profile)
	if userSettings != nil {
		s = *userSettings
	}

	return EffectiveConfig{
		EmailEnabled:        s.EmailEnabled,
		SMSEnabled:          s.SMSEnabled,
		PushEnabled:         s.PushEnabled,
		LoginAlerts:         s.LoginAlerts,
		TransactionAlerts:   s.TransactionAlerts,
		LowBalanceAlerts:    s.LowBalanceAlerts,
		LowBalanceThreshold: s.LowBalanceThreshold,
		Email:               utils.FirstNonEmpty(s.EmailAddress, profile.Email),
		Phone:               utils.FirstNonEmpty(s.PhoneNumber, profile.PhoneNumber),
		SMS: sms.Credentials{
			Provider:  utils.FirstNonEmpty(s.SMSProvider, system[KeySMSProvider]),
			APIKey:    utils.FirstNonEmpty(s.SMSAPIKey, system[KeySMSAPIKey]),
			APISecret: utils.FirstNonEmpty(s.SMSAPISecret, system[KeySMSAPISecret]),
			SenderID:  utils.FirstNonEmpty(s.SMSSenderID, system[KeySMSSenderID]),
		},
	}
}

// Patch carries a partial update of a user's settings. Nil fields are left unchanged.
type Patch struct {
	EmailEnabled        *bool    `json:"email_enabled,omitempty"`
	SMSEnabled          *bool    `json:"sms_enabled,omitempty"`
	PushEnabled         *bool    `json:"push_enabled,omitempty"`
	LoginAlerts         *bool    `json:"login_alerts,omitempty"`
	TransactionAlerts   *bool    `json:"transaction_alerts,omitempty"`
	LowBalanceAlerts    *bool    `json:"low_balance_alerts,omitempty"`
	LowBalanceThreshold *float64 `json:"low_balance_threshold,omitempty"`
	EmailAddress        *string  `json:"email_address,omitempty"`
	PhoneNumber         *string  `json:"phone_number,omitempty"`
	SMSProvider         *string  `json:"sms_provider,omitempty"`
	SMSAPIKey           *string  `json:"sms_api_key,omitempty"`
	SMSAPISecret        *string  `json:"sms_api_secret,omitempty"`
	SMSSenderID         *string  `json:"sms_sender_id,omitempty"`
}

// Apply copies the non-nil fields of p onto s.
func (p Patch) Apply(s *NotificationSettings) {
	setBool(&s.EmailEnabled, p.EmailEnabled)
	setBool(&s.SMSEnabled, p.SMSEnabled)
	setBool(&s.PushEnabled, p.PushEnabled)
	setBool(&s.LoginAlerts, p.LoginAlerts)
	setBool(&s.TransactionAlerts, p.TransactionAlerts)
	setBool(&s.LowBalanceAlerts, p.LowBalanceAlerts)
	if p.LowBalanceThreshold != nil {
		s.LowBalanceThreshold = *p.LowBalanceThreshold
	}
	setString(&s.EmailAddress, p.EmailAddress)
	setString(&s.PhoneNumber, p.PhoneNumber)
	setString(&s.SMSProvider, p.SMSProvider)
	setString(&s.SMSAPIKey, p.SMSAPIKey)
	setString(&s.SMSAPISecret, p.SMSAPISecret)
	setString(&s.SMSSenderID, p.SMSSenderID)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
