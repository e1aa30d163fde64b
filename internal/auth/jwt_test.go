package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiforecast/internal/auth"
)

var issuedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(key, issuer, audience string, clock clockwork.Clock) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
		Clock:      clock,
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(issuedAt)
	svc := newService("test-secret-key-for-testing-only", "aqiforecast", "aqiforecast-api", clock)

	token, expiresAt, err := svc.GenerateOperatorToken("ops@example.com", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, issuedAt.Add(auth.DefaultTokenExpiry), expiresAt)

	claims, err := svc.ValidateOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, "aqiforecast", claims.Issuer)
}

func TestJWTService_Expired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(issuedAt)
	svc := newService("test-key", "aqiforecast", "aqiforecast-api", clock)

	token, _, err := svc.GenerateOperatorToken("ops", time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.ValidateOperatorToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-key", "aqiforecast", "aqiforecast-api", nil)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateOperatorToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_Mismatches(t *testing.T) {
	token, _, err := newService("key-one", "aqiforecast", "aqiforecast-api", nil).GenerateOperatorToken("ops", 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		svc  *auth.JWTService
	}{
		{"wrong signing key", newService("key-two", "aqiforecast", "aqiforecast-api", nil)},
		{"wrong issuer", newService("key-one", "other", "aqiforecast-api", nil)},
		{"wrong audience", newService("key-one", "aqiforecast", "other-api", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateOperatorToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_RequiresOperatorRole(t *testing.T) {
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "aqiforecast",
			Subject:   "viewer",
			Audience:  jwt.ClaimStrings{"aqiforecast-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: "viewer",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, err = newService("test-key", "aqiforecast", "aqiforecast-api", nil).ValidateOperatorToken(token)
	assert.ErrorIs(t, err, auth.ErrNotOperator)
}

func TestJWTService_Disabled(t *testing.T) {
	svc := newService("", "aqiforecast", "aqiforecast-api", nil)
	assert.False(t, svc.Enabled())

	_, _, err := svc.GenerateOperatorToken("ops", 0)
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, err = svc.ValidateOperatorToken("anything")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)
}

func TestJWTService_EmptySubject(t *testing.T) {
	_, _, err := newService("k", "i", "a", nil).GenerateOperatorToken("", 0)
	assert.ErrorIs(t, err, auth.ErrEmptySubject)
}
