package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*TokenManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m, err := NewTokenManager(strings.Repeat("a", 32), strings.Repeat("r", 32), rdb)
	require.NoError(t, err)
	return m, mr
}

func TestNewTokenManagerRejectsShortSecrets(t *testing.T) {
	_, err := NewTokenManager("short", strings.Repeat("r", 32), nil)
	require.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	pair, err := m.IssueTokenPair(ctx, "user-1", "u1@example.com")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.True(t, mr.Exists(accessPrefix+claims.ID))

	refresh, err := m.ValidateRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	pair, err := m.IssueTokenPair(ctx, "user-1", "")
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	pair, err := m.IssueTokenPair(ctx, "user-1", "")
	require.NoError(t, err)
	claims, err := m.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, m.RevokeToken(ctx, claims.ID, false))

	_, err = m.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestUserIDContext(t *testing.T) {
	assert.Empty(t, UserIDFromContext(context.Background()))
	ctx := WithUserID(context.Background(), "user-7")
	assert.Equal(t, "user-7", UserIDFromContext(ctx))
}
