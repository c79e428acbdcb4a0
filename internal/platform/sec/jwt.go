// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing) from
// the domain logic. The [TokenService] is constructed once from configuration
// and shared read-only by every request; it holds no mutable state.
//
// # Key Rotation
//
// Tokens are signed with HS256 under the current key and carry its id in the
// `kid` header. Verification accepts the current key plus any retired keys
// still listed in configuration, so a rotation does not log everybody out.
package sec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

// MinKeyBytes is the shortest HMAC key the service accepts.
const MinKeyBytes = 32

// # Claims

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// AuthClaims represents the payload embedded inside a Fitclub JWT.
//
// By embedding the username, role and principal kind directly inside the
// token, [middleware.Authenticate] can rebuild the caller's identity WITHOUT
// querying the database on every request.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	Username string    `json:"unm"`
	Role     string    `json:"rol"`
	Kind     string    `json:"knd"`
	Type     TokenType `json:"typ"`
}

// Identity is the principal a token is issued for.
type Identity struct {
	Subject  string
	Username string
	Role     string
	Kind     string
}

// Identity returns the principal asserted by the claims.
func (c *AuthClaims) Identity() Identity {
	return Identity{Subject: c.Subject, Username: c.Username, Role: c.Role, Kind: c.Kind}
}

// TokenPair is the result of a successful login or renewal.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// # Service

// TokenConfig configures a [TokenService].
type TokenConfig struct {
	// KeyID names the signing key in the `kid` header.
	KeyID string

	// Secret is the current HMAC signing key.
	Secret []byte

	// PreviousKeys are retired keys that are still trusted for verification.
	PreviousKeys map[string][]byte

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService handles generation and verification of JWT tokens using HS256.
type TokenService struct {
	keyID      string
	keys       map[string][]byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customises a [TokenService].
type Option func(*TokenService)

// WithClock replaces the wall clock used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(service *TokenService) {
		service.now = now
	}
}

// errUnknownKey is returned by the key lookup and mapped after parsing.
var errUnknownKey = errors.New("sec: unknown signing key")

// NewTokenService creates a new TokenService.
//
// It refuses to start with a missing or short secret, a missing key id, or
// non-positive lifetimes.
func NewTokenService(cfg TokenConfig, opts ...Option) (*TokenService, error) {
	if strings.TrimSpace(cfg.KeyID) == "" {
		return nil, errors.New("sec: signing key id is required")
	}

	if len(cfg.Secret) < MinKeyBytes {
		return nil, fmt.Errorf("sec: signing secret must be at least %d bytes", MinKeyBytes)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	keys := map[string][]byte{cfg.KeyID: cfg.Secret}
	for kid, secret := range cfg.PreviousKeys {
		if kid == cfg.KeyID {
			return nil, fmt.Errorf("sec: previous key %q shadows the current key", kid)
		}
		if len(secret) < MinKeyBytes {
			return nil, fmt.Errorf("sec: previous key %q must be at least %d bytes", kid, MinKeyBytes)
		}
		keys[kid] = secret
	}

	service := &TokenService{
		keyID:      cfg.KeyID,
		keys:       keys,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RefreshTTL reports how long refresh tokens stay valid.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// AccessTTL reports how long access tokens stay valid.
func (service *TokenService) AccessTTL() time.Duration { return service.accessTTL }

// # Issuing

/*
IssueAccessToken produces a short-lived signed token for the identity.

Returns:
  - string: "Bearer <jwt>"
  - error: Signing failures
*/
func (service *TokenService) IssueAccessToken(identity Identity) (string, error) {
	return service.issue(identity, TokenAccess, service.accessTTL)
}

/*
IssueRefreshToken produces a long-lived signed token for the identity.

Every call yields a distinct token, even within the same second.
*/
func (service *TokenService) IssueRefreshToken(identity Identity) (string, error) {
	return service.issue(identity, TokenRefresh, service.refreshTTL)
}

// IssuePair mints an access and a refresh token for the identity.
func (service *TokenService) IssuePair(identity Identity) (TokenPair, error) {
	access, err := service.IssueAccessToken(identity)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := service.IssueRefreshToken(identity)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (service *TokenService) issue(identity Identity, tokenType TokenType, timeToLive time.Duration) (string, error) {
	if identity.Subject == "" {
		return "", errors.New("sec: token subject is required")
	}

	currentTime := service.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   identity.Subject,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Username: identity.Username,
		Role:     identity.Role,
		Kind:     identity.Kind,
		Type:     tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = service.keyID

	signedToken, err := token.SignedString(service.keys[service.keyID])
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return constants.BearerPrefix + signedToken, nil
}

// # Verification

/*
Verify checks the signature, key and expiry of a token string.

The "Bearer " prefix is optional.

Returns:
  - *AuthClaims: The verified payload
  - error: [apperr.ErrExpiredToken], [apperr.ErrMalformedToken] or [apperr.ErrUnknownSigningKey]
*/
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	return service.parse(tokenString,
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(service.issuer),
	)
}

// VerifyType verifies a token and additionally requires the given token type.
func (service *TokenService) VerifyType(tokenString string, want TokenType) (*AuthClaims, error) {
	claims, err := service.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Type != want {
		return nil, apperr.MalformedToken()
	}

	return claims, nil
}

/*
ExtractSubject returns the subject of a correctly signed token, even after it expired.

Signature and key are still checked; only the time-based claims are ignored.
*/
func (service *TokenService) ExtractSubject(tokenString string) (string, error) {
	claims, err := service.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", apperr.MalformedToken()
	}

	return claims.Subject, nil
}

func (service *TokenService) parse(tokenString string, opts ...jwt.ParserOption) (*AuthClaims, error) {
	raw := StripBearer(tokenString)
	if raw == "" {
		return nil, apperr.MalformedToken()
	}

	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.now),
	)

	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, service.lookupKey, opts...)

	switch {
	case errors.Is(err, errUnknownKey):
		return nil, apperr.UnknownSigningKey()
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.ExpiredToken()
	case err != nil:
		return nil, apperr.MalformedToken()
	case !token.Valid:
		return nil, apperr.MalformedToken()
	}

	return claims, nil
}

// lookupKey selects the verification key named by the `kid` header.
func (service *TokenService) lookupKey(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)

	key, ok := service.keys[kid]
	if !ok {
		return nil, errUnknownKey
	}

	return key, nil
}

// StripBearer removes the "Bearer " prefix a token string is transported with.
func StripBearer(tokenString string) string {
	trimmed := strings.TrimSpace(tokenString)
	scheme := strings.TrimSpace(constants.BearerPrefix)

	if len(trimmed) < len(scheme) || !strings.EqualFold(trimmed[:len(scheme)], scheme) {
		return trimmed
	}

	// A bare scheme carries no token.
	rest := trimmed[len(scheme):]
	if rest == "" {
		return ""
	}
	if rest[0] == ' ' || rest[0] == '\t' {
		return strings.TrimSpace(rest)
	}
	return trimmed
}
