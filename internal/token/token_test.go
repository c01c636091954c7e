package token

import (
	"context"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/infra/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// Helper
// =====================

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService("test-secret", 30*time.Minute, 7*24*time.Hour, cache.NewRevocationCache(client))
	return svc, mr
}

// =====================
// CreateTokens
// =====================

func TestService_CreateTokens(t *testing.T) {
	svc, _ := newTestService(t)

	pair, err := svc.CreateTokens(42, model.RoleUser)
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	// jtiはペア内でも別物
	assert.NotEqual(t, pair.AccessJTI, pair.RefreshJTI)
	assert.Equal(t, 30, pair.ExpiresInMinutes)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))
}

func TestService_Verify_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	pair, err := svc.CreateTokens(42, model.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, pair.AccessToken, TypeAccess)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, pair.AccessJTI, claims.ID)
}

// =====================
// Verify: 拒否パターン
// =====================

// refreshをaccessとして出したら拒否（逆も）
func TestService_Verify_WrongType(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	pair, err := svc.CreateTokens(1, model.RoleUser)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = svc.Verify(ctx, pair.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestService_Verify_BadSignature(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	other := NewService("another-secret", 30*time.Minute, 7*24*time.Hour, svc.cache)
	pair, err := other.CreateTokens(1, model.RoleUser)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Verify_Garbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Verify(ctx, "not.a.jwt", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// alg=noneのような署名方式の差し替えは受けない
func TestService_Verify_RejectsUnsignedToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "1",
		"type": TypeAccess,
		"jti":  "forged",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// =====================
// Revoke（deny-list）
// =====================

func TestService_Revoke_ThenVerifyFails(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t)

	pair, err := svc.CreateTokens(7, model.RoleUser)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessJTI, pair.AccessExpiresAt))

	// キーはTTL付きで入っている
	assert.True(t, mr.Exists(DenyListKey(pair.AccessJTI)))
	ttl := mr.TTL(DenyListKey(pair.AccessJTI))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Minute)

	_, err = svc.Verify(ctx, pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

// 期限切れtokenの失効は書き込まない（expチェックで落ちる）
func TestService_Revoke_PastExpiryIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t)

	require.NoError(t, svc.Revoke(ctx, "expired-jti", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(DenyListKey("expired-jti")))
}

func TestService_Revoke_EmptyJTIIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t)

	require.NoError(t, svc.Revoke(ctx, "", time.Now().Add(time.Hour)))
	assert.Empty(t, mr.Keys())
}

// 二重失効はエラーにしない
func TestService_Revoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, svc.Revoke(ctx, "jti-1", exp))
	require.NoError(t, svc.Revoke(ctx, "jti-1", exp))
}

// Redisが落ちているときは「無効なtoken」ではなくインフラエラーを返す
func TestService_Verify_CacheDownIsNotAuthError(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t)

	pair, err := svc.CreateTokens(1, model.RoleUser)
	require.NoError(t, err)

	mr.Close()

	_, err = svc.Verify(ctx, pair.AccessToken, TypeAccess)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}
