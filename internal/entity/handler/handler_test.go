package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncline/internal/activity"
	"syncline/internal/entity"
	"syncline/internal/notification"
	"syncline/internal/tenant"
	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/requestcontext"
	"syncline/pkg/testutil"
)

const testTenant = "org42abc"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bus := activity.NewBus(logger)
	t.Cleanup(bus.Close)

	service := entity.NewService(
		entity.NewInMemoryStore(),
		activity.NewPublisher(activity.NewInMemoryStore(), bus, logger),
	)
	h := New(service, tenant.NewScope(nil), logger)

	r := chi.NewRouter()
	// The production router resolves the tenant before these routes; tests
	// inject the resolved values straight into the request context.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithUserID(req.Context(), "u1")
			ctx = requestcontext.WithTenantID(ctx, testTenant)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Routes(r)
	return r
}

func mutationBody(mutationID string, lastRead int64, data map[string]any) map[string]any {
	return map[string]any{
		"data": data,
		"stx": map[string]any{
			"mutationId":      mutationID,
			"sourceId":        "client-1",
			"lastReadVersion": lastRead,
		},
	}
}

func createRecord(t *testing.T, router http.Handler, id string) {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/records/record/"+id,
		mutationBody("m1", 0, map[string]any{"title": "hi"}))
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, "seed create failed: %s", rr.Body.String())
}

func TestHandler_CreateReturnsRecord(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/records/record/e1",
		mutationBody("m1", 0, map[string]any{"title": "hi"}))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	record := testutil.UnmarshalResponse[entity.Record](t, rr)
	assert.Equal(t, "e1", record.ID)
	assert.Equal(t, testTenant, record.OrganizationID)
	assert.Equal(t, int64(1), record.Tx.Version)
	assert.Equal(t, "hi", record.Attrs["title"])
}

func TestHandler_CreateWithNonZeroVersionRejected(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/records/record/e1",
		mutationBody("m1", 3, nil))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeInvalidRequest))
}

func TestHandler_MissingEnvelopeRejected(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/records/record/e1",
		map[string]any{"data": map[string]any{"title": "hi"}})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeInvalidRequest))
}

func TestHandler_GetRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	createRecord(t, router, "e1")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/records/record/e1"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	record := testutil.UnmarshalResponse[entity.Record](t, rr)
	assert.Equal(t, "e1", record.ID)
}

func TestHandler_GetMissingIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/records/record/nope"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeNotFound))
}

func TestHandler_UpdateStaleVersionConflicts(t *testing.T) {
	router := newTestRouter(t)
	createRecord(t, router, "e1")

	// Advance to version 2.
	req := testutil.NewJSONRequest(t, http.MethodPut, "/records/record/e1",
		mutationBody("m2", 1, map[string]any{"title": "v2"}))
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusOK)

	// Retry with the stale version: conflict plus the current version.
	req = testutil.NewJSONRequest(t, http.MethodPut, "/records/record/e1",
		mutationBody("m3", 1, map[string]any{"title": "stale"}))
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeConflict))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, float64(2), envelope["currentVersion"])
}

func TestHandler_CachedReadRejectsForeignTokens(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	bus := activity.NewBus(logger)
	t.Cleanup(bus.Close)

	issuer := notification.NewTokenIssuer("cache-key", time.Minute)
	service := entity.NewService(
		entity.NewInMemoryStore(),
		activity.NewPublisher(activity.NewInMemoryStore(), bus, logger),
	)
	h := New(service, tenant.NewScope(nil), logger,
		WithCachedReads(issuer, notification.NewSharedCache(nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithUserID(req.Context(), "u1")
			ctx = requestcontext.WithTenantID(ctx, testTenant)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Routes(r)

	t.Run("token minted for another user", func(t *testing.T) {
		token, err := issuer.Mint("u2", []string{testTenant}, "record", "e1", 1)
		require.NoError(t, err)

		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/records/record/e1?cacheToken="+token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeForbidden))
	})

	t.Run("token minted for another entity", func(t *testing.T) {
		token, err := issuer.Mint("u1", []string{testTenant}, "record", "other-entity", 1)
		require.NoError(t, err)

		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/records/record/e1?cacheToken="+token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeForbidden))
	})

	t.Run("token for an organization outside the scope", func(t *testing.T) {
		token, err := issuer.Mint("u1", []string{"other123"}, "record", "e1", 1)
		require.NoError(t, err)

		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/records/record/e1?cacheToken="+token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestHandler_DeleteReturnsNoContent(t *testing.T) {
	router := newTestRouter(t)
	createRecord(t, router, "e1")

	req := testutil.NewJSONRequest(t, http.MethodDelete, "/records/record/e1",
		mutationBody("m2", 1, nil))
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/records/record/e1"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
