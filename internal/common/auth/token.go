// internal/common/auth/token.go

// Package auth issues and verifies the JWT pair used by the portal and
// resolves an access token into an owner identity. The lifecycle engine
// consumes only ResolveOwner and never inspects credential material itself.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	stderrors "krishi-sahayak/internal/common/errors"
)

// Claims is the token payload shared by access and refresh tokens.
type Claims struct {
	UserID       string `json:"userId"`
	MobileNumber string `json:"mobileNumber"`
	jwt.RegisteredClaims
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenManager signs and verifies the JWT pair.
type TokenManager struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(secret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssuePair signs a fresh access/refresh token pair for a user.
func (m *TokenManager) IssuePair(userID, mobileNumber string) (*TokenPair, error) {
	access, err := m.sign(m.secret, userID, mobileNumber, m.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(m.refreshSecret, userID, mobileNumber, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) sign(secret []byte, userID, mobileNumber string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:       userID,
		MobileNumber: mobileNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccessToken parses and validates an access token.
func (m *TokenManager) VerifyAccessToken(token string) (*Claims, error) {
	return m.verify(m.secret, token)
}

// VerifyRefreshToken parses and validates a refresh token.
func (m *TokenManager) VerifyRefreshToken(token string) (*Claims, error) {
	return m.verify(m.refreshSecret, token)
}

func (m *TokenManager) verify(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, stderrors.NewTokenExpiredError()
		}
		return nil, stderrors.NewUnauthorizedError(err.Error())
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, stderrors.NewUnauthorizedError("token carries no user identity")
	}
	return claims, nil
}

// ResolveOwner turns a bearer credential into the acting owner's identity.
// An empty or invalid credential is an UNAUTHORIZED failure; no default or
// mock identity exists anywhere in this service.
func (m *TokenManager) ResolveOwner(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", stderrors.NewUnauthorizedError("missing bearer token")
	}
	claims, err := m.VerifyAccessToken(credential)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
