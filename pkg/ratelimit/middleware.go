package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/simple-stepup/pkg/client"
	"github.com/tendant/simple-stepup/pkg/device"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
)

// Config bounds how often a caller may request or check codes. A capacity of
// 0 disables that limiter.
type Config struct {
	PerUserCapacity   int
	PerUserRefillRate float64 // tokens per second
	PerIPCapacity     int
	PerIPRefillRate   float64
	BucketTTL         time.Duration
	RetryAfter        time.Duration
}

// DefaultConfig allows a burst of 5 code attempts per user and 20 per ip,
// refilling at 5 and 20 per 15 minutes
func DefaultConfig() Config {
	return Config{
		PerUserCapacity:   5,
		PerUserRefillRate: 5.0 / (15 * 60),
		PerIPCapacity:     20,
		PerIPRefillRate:   20.0 / (15 * 60),
		BucketTTL:         time.Hour,
		RetryAfter:        time.Minute,
	}
}

// Middleware throttles code attempts per authenticated user and per client ip
type Middleware struct {
	config      Config
	userLimiter *RateLimiter
	ipLimiter   *RateLimiter
}

func NewMiddleware(config Config, opts ...Option) *Middleware {
	m := &Middleware{config: config}
	if config.PerUserCapacity > 0 {
		m.userLimiter = NewRateLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.BucketTTL, opts...)
	}
	if config.PerIPCapacity > 0 {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL, opts...)
	}
	return m
}

// Handler rejects requests over budget with 429
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := device.ClientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip", ip)
			return
		}

		if authUser, ok := client.GetAuthUser(r.Context()); ok && m.userLimiter != nil {
			if !m.userLimiter.Allow(authUser.UserId) {
				m.rateLimitExceeded(w, r, "user", ip)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ResetUser clears the user's budget, e.g. after a successful verification
func (m *Middleware) ResetUser(userID string) {
	if m.userLimiter != nil {
		m.userLimiter.Reset(userID)
	}
}

// Stop ends the background sweeps
func (m *Middleware) Stop() {
	if m.userLimiter != nil {
		m.userLimiter.Stop()
	}
	if m.ipLimiter != nil {
		m.ipLimiter.Stop()
	}
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType, ip string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", ip,
		"path", r.URL.Path,
		"method", r.Method,
	)

	err := apperrors.RateLimited()
	if m.config.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(m.config.RetryAfter.Seconds())))
	}
	render.Status(r, err.HTTPStatusCode())
	render.JSON(w, r, errorResponse{
		Status:  "error",
		Message: err.Message,
		Code:    string(err.Code),
	})
}
