// Package settings resolves the effective notification configuration of a user
// from the user's settings row, the user's profile and the system-wide fallback
// key/value store.
//
// Resolution order, highest priority first:
//   - explicit value on the user's NotificationSettings row
//   - the profile's contact fields, for email and phone only
//   - system config keys, for SMS provider credentials only
//
// The settings row is created with defaults on first resolution.
package settings
