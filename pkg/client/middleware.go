package client

import (
	"log/slog"
	"net/http"
)

// RequireRole returns a middleware that checks if the authenticated user has any of the specified roles.
// Returns 401 Unauthorized if not authenticated.
// Returns 403 Forbidden if authenticated but missing required role.
// Must be used after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := GetAuthUser(r.Context())
			if !ok {
				slog.Debug("Unauthenticated request to role-protected resource", "requiredRoles", roles)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !authUser.HasAnyRole(roles...) {
				slog.Warn("User lacks required role",
					"userId", authUser.UserId,
					"userRoles", authUser.Roles,
					"requiredRoles", roles)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin reports whether the user holds the admin or superadmin role
func IsAdmin(authUser *AuthUser) bool {
	if authUser == nil {
		return false
	}
	return authUser.HasAnyRole("admin", "superadmin")
}
