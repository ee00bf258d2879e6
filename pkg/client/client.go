package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

type AuthUser struct {
	UserId      string   `json:"sub"`
	DisplayName string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
		slog.Any("roles", i.Roles),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "stepup context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// AuthUserMiddleware turns the verified jwtauth claims into an AuthUser in the
// request context. It must run after Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}

		authUser := &AuthUser{UserId: token.Subject()}
		if name, ok := claims["name"].(string); ok {
			authUser.DisplayName = name
		}
		if email, ok := claims["email"].(string); ok {
			authUser.Email = email
		}
		if roles, ok := claims["roles"].([]interface{}); ok {
			for _, role := range roles {
				if s, ok := role.(string); ok {
					authUser.Roles = append(authUser.Roles, s)
				}
			}
		}

		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		slog.Debug("authenticated user", "userId", authUser.UserId, "roles", authUser.Roles)
		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the user set by AuthUserMiddleware
func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok && authUser != nil
}

// WithAuthUser stores authUser in ctx. Handlers tests use it to skip token verification.
func WithAuthUser(ctx context.Context, authUser *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, authUser)
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie, jwtauth.TokenFromQuery)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// HasAnyRole checks if the user has any of the given roles
func (i *AuthUser) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, userRole := range i.Roles {
		for _, role := range roles {
			if userRole == role {
				return true
			}
		}
	}
	return false
}
