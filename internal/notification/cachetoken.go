package notification

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "syncline/pkg/domain-errors"
)

// CacheClaims encode the tight scope of one cache token: the issuing user,
// the organizations that user could see at mint time, and the exact entity
// version the token grants a shared fetch for.
type CacheClaims struct {
	UserID          string   `json:"uid"`
	OrganizationIDs []string `json:"orgs"`
	EntityType      string   `json:"entityType"`
	EntityID        string   `json:"entityId"`
	Version         int64    `json:"version"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and redeems cache tokens. Tokens are never persisted;
// expiry is the only lifecycle.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

// Mint signs a token scoped to (user, orgs, entityType, entityId, version).
func (i *TokenIssuer) Mint(userID string, organizationIDs []string, entityType, entityID string, version int64) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CacheClaims{
		UserID:          userID,
		OrganizationIDs: organizationIDs,
		EntityType:      entityType,
		EntityID:        entityID,
		Version:         version,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(i.signingKey)
}

// Redeem validates the token and checks the redeeming caller against the
// encoded scope. Redemption by a user other than the one the token was minted
// for, or for an organization outside the encoded set, fails forbidden.
func (i *TokenIssuer) Redeem(tokenString, userID, organizationID string) (*CacheClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &CacheClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeForbidden, "cache token expired")
		}
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid cache token")
	}

	claims, ok := parsed.Claims.(*CacheClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid cache token")
	}
	if claims.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "cache token minted for another user")
	}
	if !slices.Contains(claims.OrganizationIDs, organizationID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "cache token not scoped to organization")
	}
	return claims, nil
}
