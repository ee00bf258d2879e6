// Package device records which client devices a user trusts so that step-up
// verification can be skipped on them.
//
// A device id is a one-way fingerprint of the client:
//
//	deviceID := device.FingerprintFromRequest(r)
//
// After a successful OTP verification with "remember this device":
//
//	_, err := registry.Trust(ctx, userID, deviceID, "", device.ClientIP(r), r.UserAgent())
//
// On the next login:
//
//	trusted, err := registry.IsTrusted(ctx, userID, deviceID)
//	if trusted {
//		// skip OTP
//	}
//
// Trust is stored with an atomic upsert keyed by (user, device) and lapses
// after the configured TTL without use (90 days by default).
package device
