package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	CreateSession(rec, 42)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	id, ok := ParseSession(r)
	require.True(t, ok)
	assert.Equal(t, uint(42), id)
}

func TestParseSessionRejectsTampering(t *testing.T) {
	for _, value := range []string{"", "42", "42.bad", "43." + sign("42"), "0." + sign("0"), "42." + sign("42") + ".x"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: value})
		_, ok := ParseSession(r)
		assert.False(t, ok, value)
	}
}

func TestRequireTenant(t *testing.T) {
	h := Middleware(RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := TenantIDFromContext(r.Context())
		assert.Equal(t, uint(7), id)
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	r := httptest.NewRequest(http.MethodGet, "/invoices", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: SessionValue(7)})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	SetTenantVerifier(func(context.Context, uint) bool { return false })
	defer SetTenantVerifier(nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKey(t *testing.T) {
	key, hash, err := NewAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "bk_"))
	assert.NotContains(t, hash, key)

	assert.True(t, CheckAPIKey(hash, key))
	assert.False(t, CheckAPIKey(hash, key+"x"))
	assert.False(t, CheckAPIKey("", key))
	assert.False(t, CheckAPIKey(hash, ""))
}

func TestSetSecret(t *testing.T) {
	prev := secret
	defer func() { secret = prev }()

	// A cookie signed with a guessable value does not pass the process key.
	SetSecret("devsessionsecret")
	forged := "2." + sign("2")
	secret = prev
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: forged})
	_, ok := ParseSession(r)
	assert.False(t, ok)

	SetSecret("")
	assert.Equal(t, prev, secret)

	SetSecret("0123456789abcdef0123456789abcdef")
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: SessionValue(5)})
	id, ok := ParseSession(r)
	require.True(t, ok)
	assert.Equal(t, uint(5), id)

	SetSecret("another-secret-of-sufficient-size")
	_, ok = ParseSession(r)
	assert.False(t, ok)
}
