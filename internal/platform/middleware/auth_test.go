package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"syncline/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error

	sawToken string
}

func (s *stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	s.sawToken = token
	return s.claims, s.err
}

func authedHandler(t *testing.T, validator JWTValidator) (http.Handler, *bool) {
	t.Helper()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "u1", requestcontext.UserID(r.Context()))
		assert.Equal(t, []string{"org42abc"}, requestcontext.Memberships(r.Context()))
		assert.True(t, requestcontext.IsSystemAdmin(r.Context()))
	})
	return RequireAuth(validator, slog.New(slog.DiscardHandler))(next), &called
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	v := &stubValidator{claims: &JWTClaims{UserID: "u1", Memberships: []string{"org42abc"}, SystemAdmin: true}}
	h, called := authedHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.True(t, *called)
	assert.Equal(t, "tok-123", v.sawToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAuth_QueryTokenFallback(t *testing.T) {
	v := &stubValidator{claims: &JWTClaims{UserID: "u1", Memberships: []string{"org42abc"}, SystemAdmin: true}}
	h, called := authedHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/stream?token=tok-456", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.True(t, *called)
	assert.Equal(t, "tok-456", v.sawToken)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	h, called := authedHandler(t, &stubValidator{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.False(t, *called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized","error_description":"Invalid or expired token"}`, rr.Body.String())
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	h, called := authedHandler(t, &stubValidator{err: errors.New("bad signature")})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, *called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequestID(t *testing.T) {
	t.Run("adopts inbound header", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
	})

	t.Run("generates when absent", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})
}

func TestRequestTime_FreezesNow(t *testing.T) {
	h := RequestTime(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first := requestcontext.Now(r.Context())
		second := requestcontext.Now(r.Context())
		assert.Equal(t, first, second)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
