// Package auth issues and validates the operator tokens that guard
// mutating endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTokenExpiry is how long operator tokens are valid.
	DefaultTokenExpiry = 24 * time.Hour

	// RoleOperator may trigger syncs, store records and retrain the model.
	RoleOperator = "operator"
)

// Predefined JWT errors.
var (
	ErrInvalidToken = errors.New("invalid operator token")
	ErrTokenExpired = errors.New("operator token has expired")
	ErrNotOperator  = errors.New("token does not carry the operator role")
	ErrNoSigningKey = errors.New("no signing key configured")
	ErrEmptySubject = errors.New("token subject is required")
)

// Claims are the claims carried by operator tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role granted to the bearer.
	Role string `json:"role"`
}

// JWTConfig configures HS256 operator tokens. An empty SigningKey
// disables issuing and validation.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	Clock      clockwork.Clock
}

// JWTService handles operator token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      clockwork.Clock
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		clock:      clock,
	}
}

// Enabled reports whether a signing key is configured.
func (s *JWTService) Enabled() bool {
	return len(s.signingKey) > 0
}

// GenerateOperatorToken creates a token for subject valid for ttl
// (DefaultTokenExpiry when ttl is not positive).
func (s *JWTService) GenerateOperatorToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrNoSigningKey
	}
	if subject == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: RoleOperator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateOperatorToken validates a token and returns its claims.
func (s *JWTService) ValidateOperatorToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNoSigningKey
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleOperator {
		return nil, ErrNotOperator
	}

	return claims, nil
}
