package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	msg := "configuration validation failed:"
	for _, err := range e {
		msg += fmt.Sprintf("\n  - %s", err.Error())
	}
	return msg
}

// Validator is a function that validates configuration and returns errors
type Validator func() ValidationErrors

// Validate runs multiple validators and combines their errors
func Validate(validators ...Validator) error {
	var allErrors ValidationErrors

	for _, validator := range validators {
		if errs := validator(); len(errs) > 0 {
			allErrors = append(allErrors, errs...)
		}
	}

	if len(allErrors) > 0 {
		return allErrors
	}
	return nil
}

func collect(errs ...*ValidationError) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if err != nil {
			out = append(out, *err)
		}
	}
	return out
}

// RequirePositiveDuration validates that a duration field is positive
func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be positive, got %v", value),
		}
	}
	return nil
}

// RequireMinLength validates that a secret is long enough
func RequireMinLength(field, value string, min int) *ValidationError {
	if len(value) < min {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters", min),
		}
	}
	return nil
}

// RequireValidURL validates that a string is a valid absolute URL
func RequireValidURL(field, value string) *ValidationError {
	parsedURL, err := url.Parse(value)
	if err != nil || value == "" {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid URL",
		}
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return &ValidationError{
			Field:   field,
			Message: "URL must have a scheme and host",
		}
	}
	return nil
}

// Validator returns the checks for OTP settings. Peppers must be long in production.
func (o OTPConfig) Validator(production bool) Validator {
	return func() ValidationErrors {
		errs := collect(
			RequirePositiveDuration("OTP_TTL", o.TTL),
			RequirePositiveDuration("OTP_CLEANUP_INTERVAL", o.CleanupInterval),
		)
		if production {
			errs = append(errs, collect(
				RequireMinLength("OTP_PEPPER", o.Pepper, 32),
				RequireMinLength("BACKUP_CODE_PEPPER", o.BackupCodePepper, 32),
			)...)
		}
		return errs
	}
}

// Validator returns the checks for SMS gateway settings
func (s SMSConfig) Validator() Validator {
	return func() ValidationErrors {
		errs := collect(
			RequireValidURL("SMS_BEARER_JSON_URL", s.BearerJSONURL),
			RequireValidURL("SMS_QUERY_GATEWAY_URL", s.QueryGatewayURL),
			RequirePositiveDuration("SMS_TIMEOUT", s.Timeout),
		)
		if s.DefaultCountryCode == "" {
			errs = append(errs, ValidationError{Field: "SMS_DEFAULT_COUNTRY_CODE", Message: "is required"})
		}
		return errs
	}
}
