package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminHeader = "X-API-Key"

func adminAuthWithKey(t *testing.T, key string) *AdminKeyAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminKeyAuth(adminHeader, string(hash))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminKeyAuth_ValidKey(t *testing.T) {
	auth := adminAuthWithKey(t, "secret-key")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cache/evict", nil)
	req.Header.Set(adminHeader, "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKeyAuth_BearerToken(t *testing.T) {
	auth := adminAuthWithKey(t, "secret-key")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cache/evict", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminKeyAuth_WrongKey(t *testing.T) {
	auth := adminAuthWithKey(t, "secret-key")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cache/evict", nil)
	req.Header.Set(adminHeader, "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminKeyAuth_MissingKey(t *testing.T) {
	auth := adminAuthWithKey(t, "secret-key")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cache/evict", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminKeyAuth_NoHashConfiguredRejectsEverything(t *testing.T) {
	auth := NewAdminKeyAuth(adminHeader, "")
	handler := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/cache/evict", nil)
	req.Header.Set(adminHeader, "any-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, auth.Enabled())
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestNoCacheMiddleware(t *testing.T) {
	handler := NoCacheMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	handler := RequestSizeLimitMiddleware(16)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 64
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChainOrdersOutsideIn(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := ChainHandler(okHandler(), mw("first"), mw("second"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second"}, order)
}
