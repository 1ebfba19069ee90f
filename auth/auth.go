// Package auth resolves the tenant of a request from a signed session cookie.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-billing/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	tenantIDCtxKey    = ctxKey("tenantID")
	sessionTTL        = 14 * 24 * time.Hour
)

// TenantVerifier is an optional callback to validate that a session's tenant still exists.
// Set it during app bootstrap via SetTenantVerifier. If nil, no extra verification is performed.
type TenantVerifier func(ctx context.Context, tenantID uint) bool

var verifier TenantVerifier

// SetTenantVerifier configures the global verifier used by RequireTenant.
func SetTenantVerifier(v TenantVerifier) { verifier = v }

// secret signs session cookies. Until SetSecret is called it is random per
// process, so sessions end with the process.
var secret = randomSecret()

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("auth: reading random session key: " + err.Error())
	}
	return b
}

// SetSecret configures the key used to sign session cookies. An empty s keeps
// the per-process random key.
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

func sign(value string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SessionValue returns the signed cookie value for tenantID.
func SessionValue(tenantID uint) string {
	id := strconv.FormatUint(uint64(tenantID), 10)
	return id + "." + sign(id)
}

// CreateSession sets a signed cookie with the tenant id.
func CreateSession(w http.ResponseWriter, tenantID uint) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    SessionValue(tenantID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates cookie and returns the tenant id.
func ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	idStr, sig, ok := strings.Cut(c.Value, ".")
	if !ok || strings.Contains(sig, ".") {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(idStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// WithTenantID stores the tenant id in context.
func WithTenantID(ctx context.Context, tenantID uint) context.Context {
	return context.WithValue(ctx, tenantIDCtxKey, tenantID)
}

// TenantIDFromContext extracts the tenant id.
func TenantIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(tenantIDCtxKey).(uint)
	return id, ok
}

// Middleware attaches the tenant id to the request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := ParseSession(r); ok {
			r = r.WithContext(WithTenantID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTenant returns 401 JSON unless the request carries a valid, verified session.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := TenantIDFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if verifier != nil && !verifier(r.Context(), id) {
			// Session refers to a tenant that no longer exists: clear and treat as unauthorized.
			ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
