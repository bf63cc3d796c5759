package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "syncline/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "syncline", "syncline-api")
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("u1", []string{"org42abc", "other123"}, false, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"org42abc", "other123"}, claims.Memberships)
	assert.False(t, claims.SystemAdmin)
	assert.Equal(t, "syncline", claims.Issuer)
}

func TestJWTService_SystemAdminFlagSurvives(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("root", nil, true, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.SystemAdmin)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("u1", nil, false, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	token, err := NewJWTService("other-key", "syncline", "syncline-api").
		GenerateAccessToken("u1", nil, false, time.Minute)
	require.NoError(t, err)

	_, err = newTestService().ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	_, err := newTestService().ValidateToken("not.a.token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestMiddlewareAdapter_MapsClaims(t *testing.T) {
	svc := newTestService()
	token, err := svc.GenerateAccessToken("u1", []string{"org42abc"}, true, time.Minute)
	require.NoError(t, err)

	claims, err := NewMiddlewareAdapter(svc).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"org42abc"}, claims.Memberships)
	assert.True(t, claims.SystemAdmin)
}
