// Package jwt JWT令牌管理单元测试
package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestManager 创建测试用的 JWT Manager
func setupTestManager() *Manager {
	config := &Config{
		Secret:            "test-secret-key-for-jwt-token-signing",
		AccessExpireTime:  15 * time.Minute,
		RefreshExpireTime: 7 * 24 * time.Hour,
		Issuer:            "volo-stay",
	}
	return NewManager(config)
}

// ==================== GenerateTokenPair 测试 ====================

func TestManager_GenerateTokenPair_Success(t *testing.T) {
	manager := setupTestManager()

	tests := []struct {
		name     string
		userID   int64
		userType string
		role     string
	}{
		{"Guest token", 12345, UserTypeUser, "guest"},
		{"Host token", 54321, UserTypeUser, "host"},
		{"Admin token", 99999, UserTypeAdmin, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenPair, err := manager.GenerateTokenPair(tt.userID, tt.userType, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, tokenPair.AccessToken)
			assert.NotEmpty(t, tokenPair.RefreshToken)
			assert.NotEqual(t, tokenPair.AccessToken, tokenPair.RefreshToken)
			assert.Greater(t, tokenPair.ExpiresAt, time.Now().Unix())

			// 访问令牌带 access 类型
			claims, err := manager.ParseToken(tokenPair.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.userType, claims.UserType)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, TokenTypeAccess, claims.TokenType)

			// 刷新令牌带 refresh 类型
			refreshClaims, err := manager.ParseToken(tokenPair.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, refreshClaims.UserID)
			assert.Equal(t, TokenTypeRefresh, refreshClaims.TokenType)
		})
	}
}

func TestManager_GenerateTokenPair_ExpiryTime(t *testing.T) {
	manager := setupTestManager()

	tokenPair, err := manager.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	// ExpiresAt 大约是 15 分钟后
	expectedExpireAt := time.Now().Add(15 * time.Minute).Unix()
	assert.InDelta(t, expectedExpireAt, tokenPair.ExpiresAt, 5)
}

// ==================== ParseToken 测试 ====================

func TestManager_ParseToken_InvalidInputs(t *testing.T) {
	manager := setupTestManager()

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"Garbage", "not-a-token"},
		{"Truncated JWT", "eyJhbGciOiJIUzI1NiJ9.e30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := manager.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestManager_ParseToken_WrongSecret(t *testing.T) {
	manager1 := setupTestManager()

	pair, err := manager1.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	manager2 := NewManager(&Config{
		Secret:            "another-secret",
		AccessExpireTime:  time.Hour,
		RefreshExpireTime: 24 * time.Hour,
		Issuer:            "volo-stay",
	})

	claims, err := manager2.ParseToken(pair.AccessToken)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestManager_ParseToken_ExpiredToken(t *testing.T) {
	manager := NewManager(&Config{
		Secret:            "test-secret",
		AccessExpireTime:  1 * time.Millisecond,
		RefreshExpireTime: 1 * time.Millisecond,
		Issuer:            "volo-stay",
	})

	pair, err := manager.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := manager.ParseToken(pair.AccessToken)
	assert.Equal(t, ErrTokenExpired, err)
	assert.Nil(t, claims)
}

func TestManager_ParseToken_TamperedPayload(t *testing.T) {
	manager := setupTestManager()

	pair, err := manager.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	claims, err := manager.ParseToken(tampered)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

// ==================== ParseAccessToken 测试 ====================

func TestManager_ParseAccessToken(t *testing.T) {
	manager := setupTestManager()

	pair, err := manager.GenerateTokenPair(123, UserTypeUser, "host")
	require.NoError(t, err)

	claims, err := manager.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(123), claims.UserID)

	// 刷新令牌不能当作访问令牌
	claims, err = manager.ParseAccessToken(pair.RefreshToken)
	assert.Equal(t, ErrTokenInvalid, err)
	assert.Nil(t, claims)
}

// ==================== RefreshToken 测试 ====================

func TestManager_RefreshToken_Success(t *testing.T) {
	manager := setupTestManager()

	originalPair, err := manager.GenerateTokenPair(12345, UserTypeUser, "host")
	require.NoError(t, err)

	newPair, err := manager.RefreshToken(originalPair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newPair.AccessToken)
	assert.NotEmpty(t, newPair.RefreshToken)

	claims, err := manager.ParseToken(newPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), claims.UserID)
	assert.Equal(t, UserTypeUser, claims.UserType)
	assert.Equal(t, "host", claims.Role)
}

func TestManager_RefreshToken_RejectsAccessToken(t *testing.T) {
	manager := setupTestManager()

	pair, err := manager.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	newPair, err := manager.RefreshToken(pair.AccessToken)
	assert.Equal(t, ErrNotRefreshToken, err)
	assert.Nil(t, newPair)
}

func TestManager_RefreshToken_InvalidToken(t *testing.T) {
	manager := setupTestManager()

	newPair, err := manager.RefreshToken("invalid-refresh-token")
	assert.Error(t, err)
	assert.Nil(t, newPair)
}

func TestManager_RefreshToken_ExpiredToken(t *testing.T) {
	manager := NewManager(&Config{
		Secret:            "test-secret",
		AccessExpireTime:  1 * time.Millisecond,
		RefreshExpireTime: 1 * time.Millisecond,
		Issuer:            "volo-stay",
	})

	tokenPair, err := manager.GenerateTokenPair(123, UserTypeUser, "guest")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	newPair, err := manager.RefreshToken(tokenPair.RefreshToken)
	assert.Equal(t, ErrTokenExpired, err)
	assert.Nil(t, newPair)
}

// ==================== 基准测试 ====================

func BenchmarkGenerateTokenPair(b *testing.B) {
	manager := setupTestManager()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.GenerateTokenPair(12345, UserTypeUser, "guest")
	}
}

func BenchmarkParseToken(b *testing.B) {
	manager := setupTestManager()
	pair, _ := manager.GenerateTokenPair(12345, UserTypeUser, "guest")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.ParseToken(pair.AccessToken)
	}
}
