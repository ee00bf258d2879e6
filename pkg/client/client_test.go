package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret-key")

// CreateTestToken creates a JWT for userID with the given roles
func CreateTestToken(userID string, roles []string, secret []byte) (string, error) {
	tokenAuth := jwtauth.New("HS256", secret, nil)
	claims := map[string]interface{}{
		"sub":   userID,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "test@example.com",
		"roles": roles,
	}
	_, tokenString, err := tokenAuth.Encode(claims)
	return tokenString, err
}

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Verifier(jwtauth.New("HS256", testSecret, nil)))
	r.Use(AuthUserMiddleware)
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		authUser, ok := GetAuthUser(r.Context())
		if !ok {
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(authUser.UserId + "|" + authUser.Email))
	})
	r.With(RequireRole("admin")).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestAuthUserMiddleware_ValidToken(t *testing.T) {
	token, err := CreateTestToken("user-1", []string{"user"}, testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-1|test@example.com", rr.Body.String())
}

func TestAuthUserMiddleware_TokenFromCookie(t *testing.T) {
	token, err := CreateTestToken("user-1", nil, testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: token})
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthUserMiddleware_Rejects(t *testing.T) {
	wrongSecret, err := CreateTestToken("user-1", nil, []byte("another-secret"))
	require.NoError(t, err)
	noSubject, err := CreateTestToken("", nil, testSecret)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing token": "",
		"wrong secret":  "Bearer " + wrongSecret,
		"no subject":    "Bearer " + noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			newTestRouter().ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	userToken, err := CreateTestToken("user-1", []string{"user"}, testSecret)
	require.NoError(t, err)
	adminToken, err := CreateTestToken("admin-1", []string{"admin"}, testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr = httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
