package auth

import (
	"testing"
	"time"

	"github.com/feeledger/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "fee-ledger",
	})
}

func newTestInput() GenerateTokenInput {
	return GenerateTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Username: "bursar",
		Role:     RoleAccountant,
	}
}

func TestNewJWTService_DefaultExpiration(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: testSecret})
	assert.Equal(t, 15*time.Minute, svc.expiration)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	token, expiresAt, err := svc.GenerateToken(input)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, input.TenantID.String(), claims.TenantID)
	assert.Equal(t, input.UserID.String(), claims.UserID)
	assert.Equal(t, "bursar", claims.Username)
	assert.Equal(t, RoleAccountant, claims.Role)

	tenantID, err := claims.GetTenantUUID()
	require.NoError(t, err)
	assert.Equal(t, input.TenantID, tenantID)
	userID, err := claims.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, input.UserID, userID)
}

func TestGenerateToken_UnknownRole(t *testing.T) {
	input := newTestInput()
	input.Role = "JANITOR"
	_, _, err := newTestJWTService().GenerateToken(input)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func signed(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateToken_Failures(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	valid := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "fee-ledger",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			TenantID: uuid.NewString(),
			UserID:   uuid.NewString(),
			Role:     RolePrincipal,
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"garbage", func() string { return "not.a.token" }, ErrInvalidToken},
		{"wrong secret", func() string { return signed(t, valid(), "another-secret-another-secret-xx") }, ErrInvalidToken},
		{"expired", func() string {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
			return signed(t, c, testSecret)
		}, ErrExpiredToken},
		{"not yet valid", func() string {
			c := valid()
			c.NotBefore = jwt.NewNumericDate(now.Add(time.Hour))
			return signed(t, c, testSecret)
		}, ErrTokenNotYetValid},
		{"wrong issuer", func() string {
			c := valid()
			c.Issuer = "someone-else"
			return signed(t, c, testSecret)
		}, ErrInvalidToken},
		{"missing tenant", func() string {
			c := valid()
			c.TenantID = ""
			return signed(t, c, testSecret)
		}, ErrMissingTenantID},
		{"missing user", func() string {
			c := valid()
			c.UserID = ""
			return signed(t, c, testSecret)
		}, ErrMissingUserID},
		{"unknown role", func() string {
			c := valid()
			c.Role = "JANITOR"
			return signed(t, c, testSecret)
		}, ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "fee-ledger", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TenantID:         uuid.NewString(),
		UserID:           uuid.NewString(),
		Role:             RolePrincipal,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_HasRole(t *testing.T) {
	c := &Claims{Role: RoleTeacher}
	assert.True(t, c.HasRole(RolePrincipal, RoleTeacher))
	assert.False(t, c.HasRole(RolePrincipal, RoleAccountant))
	assert.False(t, c.HasRole())
}
