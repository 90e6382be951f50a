package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"verbs-tickets/internal/config"
	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/utils"
)

type contextKey string

const emailKey contextKey = "admin_email"

// Cookie names match what the auth provider's browser client sets, so the
// API and the site frontend share one session.
const (
	AccessCookie  = "sb-access-token"
	RefreshCookie = "sb-refresh-token"
)

// Middleware gates admin endpoints behind the session cookies issued at
// login. The access token is verified locally (HS256 shared secret); when it
// has expired, the refresh token is exchanged against the auth server and
// fresh cookies are rotated onto the response.
type Middleware struct {
	supabaseURL string
	anonKey     string
	jwtSecret   []byte
	httpClient  *http.Client
	logger      *logger.Logger
}

func NewMiddleware(cfg config.AuthConfig, client *http.Client, log *logger.Logger) *Middleware {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Middleware{
		supabaseURL: cfg.SupabaseURL,
		anonKey:     cfg.AnonKey,
		jwtSecret:   []byte(cfg.JWTSecret),
		httpClient:  client,
		logger:      log,
	}
}

// RequireAdmin wraps a handler so only an authenticated session reaches it.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(AccessCookie); err == nil {
			if email, err := m.verifyToken(cookie.Value); err == nil {
				next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
				return
			}
		}

		refreshCookie, err := r.Cookie(RefreshCookie)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sess, err := m.refreshSession(r.Context(), refreshCookie.Value)
		if err != nil {
			m.logger.Warn("AUTH", fmt.Sprintf("Session refresh failed: %v", err))
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		email, err := m.verifyToken(sess.AccessToken)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		m.setSessionCookies(w, sess)
		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
	})
}

// Logout clears the session cookies and sends the browser back to the admin
// login page.
func (m *Middleware) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookies(w)
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

func (m *Middleware) verifyToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	email, _ := claims["email"].(string)
	return email, nil
}

type session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (m *Middleware) refreshSession(ctx context.Context, refreshToken string) (*session, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	url := m.supabaseURL + "/auth/v1/token?grant_type=refresh_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", m.anonKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth server returned %d", resp.StatusCode)
	}

	var sess session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		return nil, fmt.Errorf("auth server returned empty session")
	}
	return &sess, nil
}

func (m *Middleware) setSessionCookies(w http.ResponseWriter, sess *session) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    sess.AccessToken,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    sess.RefreshToken,
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func withEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// Email extracts the authenticated admin's email from the request context.
func Email(ctx context.Context) string {
	if email, ok := ctx.Value(emailKey).(string); ok {
		return email
	}
	return ""
}
