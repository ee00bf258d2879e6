package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Fingerprint derives a stable device id from the user agent and client IP.
// The result identifies a client; it is not a secret.
func Fingerprint(userAgent, ipAddress string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(userAgent) + "|" + strings.TrimSpace(ipAddress)))
	return hex.EncodeToString(hash[:])
}

// FingerprintFromRequest prefers an app supplied X-Device-ID header, which
// survives IP changes on mobile networks, and falls back to user agent + IP.
func FingerprintFromRequest(r *http.Request) string {
	if deviceID := strings.TrimSpace(r.Header.Get("X-Device-ID")); deviceID != "" {
		hash := sha256.Sum256([]byte("device-id|" + deviceID))
		return hex.EncodeToString(hash[:])
	}
	return Fingerprint(r.UserAgent(), ClientIP(r))
}

// ClientIP returns the host part of RemoteAddr. Run chi's RealIP middleware
// in front when the service sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NameFromUserAgent returns a display name for a device
func NameFromUserAgent(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	// Check for common mobile devices
	if contains(userAgent, "iPhone") {
		return "iPhone"
	} else if contains(userAgent, "iPad") {
		return "iPad"
	} else if contains(userAgent, "Android") && contains(userAgent, "Mobile") {
		return "Android Phone"
	} else if contains(userAgent, "Android") {
		return "Android Tablet"
	}

	// Check for desktop operating systems
	if contains(userAgent, "Macintosh") || contains(userAgent, "Mac OS X") {
		return "Mac"
	} else if contains(userAgent, "Windows") {
		return "Windows PC"
	} else if contains(userAgent, "CrOS") {
		return "Chromebook"
	} else if contains(userAgent, "Linux") {
		return "Linux"
	}

	return "Unknown Device"
}

// contains is a helper function to check if a string contains a substring (case insensitive)
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
