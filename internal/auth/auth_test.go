package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	return NewVerifier("test-secret", "invoice.sieve", "local.sieve")
}

func protected(t *testing.T, v *Verifier) (http.Handler, *string) {
	t.Helper()
	var gotSubject string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := GetClaimsFromContext(r.Context())
		require.NoError(t, err)
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))
	return h, &gotSubject
}

func TestMiddlewareValidToken(t *testing.T) {
	v := newTestVerifier()
	token, err := v.GenerateToken("user-42", time.Minute)
	require.NoError(t, err)

	h, subject := protected(t, v)
	req := httptest.NewRequest(http.MethodGet, "/invoice/inv-1/decision", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", *subject)
}

func TestMiddlewareDevToken(t *testing.T) {
	v := newTestVerifier()
	h, subject := protected(t, v)

	req := httptest.NewRequest(http.MethodPost, "/scoreInvoice", nil)
	req.Header.Set("Authorization", "Bearer devtoken")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev-user", *subject)
}

func TestMiddlewareMissingHeader(t *testing.T) {
	v := newTestVerifier()
	h, _ := protected(t, v)

	req := httptest.NewRequest(http.MethodPost, "/scoreInvoice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareWrongAudience(t *testing.T) {
	other := NewVerifier("test-secret", "some.other.audience", "local.sieve")
	token, err := other.GenerateToken("user-42", time.Minute)
	require.NoError(t, err)

	h, _ := protected(t, newTestVerifier())
	req := httptest.NewRequest(http.MethodPost, "/scoreInvoice", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareExpiredToken(t *testing.T) {
	v := newTestVerifier()
	token, err := v.GenerateToken("user-42", -time.Minute)
	require.NoError(t, err)

	h, _ := protected(t, v)
	req := httptest.NewRequest(http.MethodPost, "/scoreInvoice", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	v := newTestVerifier()
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
