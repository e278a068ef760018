// internal/common/auth/token_test.go
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "krishi-sahayak/internal/common/errors"
)

func newTestManager() *TokenManager {
	return NewTokenManager("test-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestIssueAndVerifyPair(t *testing.T) {
	m := newTestManager()

	pair, err := m.IssuePair("user-001", "9876543210")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := m.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-001", claims.UserID)
	assert.Equal(t, "9876543210", claims.MobileNumber)

	claims, err = m.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-001", claims.UserID)
}

func TestVerify_RejectsCrossTokenUse(t *testing.T) {
	m := newTestManager()
	pair, err := m.IssuePair("user-001", "9876543210")
	require.NoError(t, err)

	// A refresh token must not pass as an access token and vice versa.
	_, err = m.VerifyAccessToken(pair.RefreshToken)
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeUnauthorized))

	_, err = m.VerifyRefreshToken(pair.AccessToken)
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeUnauthorized))
}

func TestVerify_ExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", "test-refresh-secret", -time.Minute, -time.Minute)
	pair, err := m.IssuePair("user-001", "9876543210")
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(pair.AccessToken)
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeTokenExpired))
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newTestManager()
	pair, err := m.IssuePair("user-001", "9876543210")
	require.NoError(t, err)

	other := NewTokenManager("different-secret", "different-refresh", 15*time.Minute, time.Hour)
	_, err = other.VerifyAccessToken(pair.AccessToken)
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeUnauthorized))
}

func TestResolveOwner(t *testing.T) {
	m := newTestManager()
	pair, err := m.IssuePair("user-042", "9123456789")
	require.NoError(t, err)

	ownerID, err := m.ResolveOwner(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-042", ownerID)

	_, err = m.ResolveOwner(context.Background(), "")
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeUnauthorized))

	_, err = m.ResolveOwner(context.Background(), "not-a-token")
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeUnauthorized))
}
