package cdc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/circuit"
)

func newTestProxy(t *testing.T, upstream *httptest.Server) *Proxy {
	t.Helper()
	p, err := New(upstream.URL, "shh-secret", circuit.New("test", 3, time.Minute))
	require.NoError(t, err)
	return p
}

func TestProxy_ForwardsWhitelistedParamsAndSecret(t *testing.T) {
	var seen *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		w.Header().Set("Electric-Handle", "h-123")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"op":"insert"}]`))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream)
	rr := httptest.NewRecorder()

	params := url.Values{
		"offset":    []string{"-1"},
		"live":      []string{"true"},
		"where":     []string{`organization_id = 'org42abc'`},
		"api_key":   []string{"client-should-not-smuggle-this"},
		"table":     []string{"client-should-not-override-this"},
	}
	err := p.Forward(context.Background(), rr, "records", params, true)
	require.NoError(t, err)

	require.NotNil(t, seen)
	q := seen.URL.Query()
	assert.Equal(t, "records", q.Get("table"))
	assert.Equal(t, "-1", q.Get("offset"))
	assert.Equal(t, "true", q.Get("live"))
	assert.Equal(t, `organization_id = 'org42abc'`, q.Get("where"))
	assert.Empty(t, q.Get("api_key"), "unrecognized parameters must not be forwarded")
	assert.Equal(t, "Bearer shh-secret", seen.Header.Get("Authorization"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "h-123", rr.Header().Get("Electric-Handle"))
	assert.Equal(t, `[{"op":"insert"}]`, rr.Body.String())
}

func TestProxy_StripsContentEncodingHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", "9999")
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("body"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream)
	rr := httptest.NewRecorder()

	require.NoError(t, p.Forward(context.Background(), rr, "records", url.Values{}, false))
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Equal(t, "max-age=60", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "body", rr.Body.String())
}

func TestProxy_RequiresTable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	err := newTestProxy(t, upstream).Forward(context.Background(), httptest.NewRecorder(), "", url.Values{}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
}

func TestProxy_RequireScopeRefusesUnscopedReplay(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer upstream.Close()

	err := newTestProxy(t, upstream).Forward(context.Background(), httptest.NewRecorder(), "records", url.Values{}, true)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	assert.False(t, called, "unscoped replay must not reach upstream")
}

func TestProxy_UpstreamFailureIsSyncFailed(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close() // connection refused from here on

	p := newTestProxy(t, upstream)
	err := p.Forward(context.Background(), httptest.NewRecorder(), "records", url.Values{}, false)

	require.True(t, dErrors.HasCode(err, dErrors.CodeSyncFailed))
	var de *dErrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "records", de.Details["entityType"])
}

func TestProxy_OpenBreakerFailsFast(t *testing.T) {
	requests := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer upstream.Close()

	breaker := circuit.New("test", 1, time.Minute)
	p, err := New(upstream.URL, "shh-secret", breaker)
	require.NoError(t, err)

	breaker.RecordFailure()
	err = p.Forward(context.Background(), httptest.NewRecorder(), "records", url.Values{}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSyncFailed))
	assert.Zero(t, requests, "open circuit must not reach upstream")
}

func TestProxy_UpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"handle expired"}`))
	}))
	defer upstream.Close()

	rr := httptest.NewRecorder()
	require.NoError(t, newTestProxy(t, upstream).Forward(context.Background(), rr, "records", url.Values{}, false))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"message":"handle expired"}`, rr.Body.String())
}
