// Package utils provides small helpers shared by the step-up and notification packages:
// phone number normalization, contact masking for logs and SQL null conversions.
package utils
