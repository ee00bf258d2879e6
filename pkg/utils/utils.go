package utils

import (
	"database/sql"
	"errors"
	"strings"
)

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat("*", len(email))
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone rewrites a phone number into digits-only international form.
// A national number with a leading zero gets countryCode in place of the zero;
// numbers with a "+" or "00" prefix, or already starting with countryCode, pass through.
func NormalizePhone(phone, countryCode string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting
		default:
			return "", ErrInvalidPhone
		}
	}
	cleaned := b.String()
	countryCode = strings.TrimPrefix(countryCode, "+")

	var normalized string
	switch {
	case strings.HasPrefix(cleaned, "+"):
		normalized = cleaned[1:]
	case strings.HasPrefix(cleaned, "00"):
		normalized = cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		if countryCode == "" {
			return "", ErrInvalidPhone
		}
		normalized = countryCode + cleaned[1:]
	default:
		normalized = cleaned
	}

	if len(normalized) < 8 || len(normalized) > 15 {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}
