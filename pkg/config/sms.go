package config

import "time"

// SMSConfig holds the SMS gateway endpoints and routing defaults.
// Credentials are not configured here: they come from per-user settings
// or the system_notification_config table.
type SMSConfig struct {
	DefaultProvider    string        `env:"SMS_DEFAULT_PROVIDER" env-default:"bearer_json"`
	BearerJSONURL      string        `env:"SMS_BEARER_JSON_URL" env-default:"https://sms.example.com/api/v2/sms/send"`
	QueryGatewayURL    string        `env:"SMS_QUERY_GATEWAY_URL" env-default:"https://gateway.example.com/sms/api"`
	DefaultCountryCode string        `env:"SMS_DEFAULT_COUNTRY_CODE" env-default:"233"`
	Timeout            time.Duration `env:"SMS_TIMEOUT" env-default:"5s"`
}
