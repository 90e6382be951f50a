package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"verbs-tickets/internal/config"
	"verbs-tickets/internal/logger"
)

const testSecret = "super-secret-signing-key"

func signToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "admin@verbsaroundthe.world",
		"exp":   time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func newMiddleware(t *testing.T, authServerURL string) *Middleware {
	t.Helper()
	return NewMiddleware(config.AuthConfig{
		SupabaseURL: authServerURL,
		AnonKey:     "anon-key",
		JWTSecret:   testSecret,
	}, nil, logger.NewLogger())
}

func protected(m *Middleware) (http.Handler, *string) {
	var seenEmail string
	handler := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenEmail = Email(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &seenEmail
}

func TestRequireAdminValidAccessToken(t *testing.T) {
	m := newMiddleware(t, "http://unused.local")
	handler, seenEmail := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: signToken(t, testSecret, time.Hour)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@verbsaroundthe.world", *seenEmail)
}

func TestRequireAdminNoCookies(t *testing.T) {
	m := newMiddleware(t, "http://unused.local")
	handler, _ := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/thing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestRequireAdminRejectsForgedToken(t *testing.T) {
	m := newMiddleware(t, "http://unused.local")
	handler, _ := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: signToken(t, "wrong-secret", time.Hour)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminRefreshesExpiredSession(t *testing.T) {
	freshAccess := signToken(t, testSecret, time.Hour)

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-123", body["refresh_token"])

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  freshAccess,
			"refresh_token": "refresh-456",
		})
	}))
	defer authServer.Close()

	m := newMiddleware(t, authServer.URL)
	handler, seenEmail := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: signToken(t, testSecret, -time.Hour)})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-123"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@verbsaroundthe.world", *seenEmail)

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	if assert.Contains(t, byName, AccessCookie) {
		assert.Equal(t, freshAccess, byName[AccessCookie].Value)
		assert.True(t, byName[AccessCookie].HttpOnly)
	}
	if assert.Contains(t, byName, RefreshCookie) {
		assert.Equal(t, "refresh-456", byName[RefreshCookie].Value)
	}
}

func TestRequireAdminRefreshFailure(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer authServer.Close()

	m := newMiddleware(t, authServer.URL)
	handler, _ := protected(m)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/thing", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookies(t *testing.T) {
	m := newMiddleware(t, "http://unused.local")

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	rec := httptest.NewRecorder()
	m.Logout(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, "cookie %s should be expired", c.Name)
	}
}
