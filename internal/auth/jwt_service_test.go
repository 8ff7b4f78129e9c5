package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestNewJWTServiceDefaults(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, svc.accessTTL)
	require.Equal(t, 7*24*time.Hour, svc.refreshTTL)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "staffhub",
		AccessTokenTTL: time.Hour,
		Clock:          now,
	})
	require.NoError(t, err)

	token, expiresAt, err := svc.GenerateAccessToken(TokenInput{
		AccountID: "account-123",
		Email:     "a@x.com",
		Role:      "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.Equal(current.Add(time.Hour)))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)

	require.Equal(t, "account-123", claims.AccountID())
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, TokenTypeAccess, claims.Type)
	require.Equal(t, "staffhub", claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestRefreshTokenOmitsRoleAndIsUnique(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	input := TokenInput{AccountID: "account-1", Email: "a@x.com", Role: "employee"}
	first, _, err := svc.GenerateRefreshToken(input)
	require.NoError(t, err)
	second, _, err := svc.GenerateRefreshToken(input)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	claims, err := svc.ValidateRefreshToken(first)
	require.NoError(t, err)
	require.Empty(t, claims.Role)
	require.Equal(t, TokenTypeRefresh, claims.Type)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	input := TokenInput{AccountID: "account-1", Email: "a@x.com"}
	access, _, err := svc.GenerateAccessToken(input)
	require.NoError(t, err)
	refresh, _, err := svc.GenerateRefreshToken(input)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(refresh)
	require.ErrorIs(t, err, ErrWrongTokenType)
	_, err = svc.ValidateRefreshToken(access)
	require.ErrorIs(t, err, ErrWrongTokenType)
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{
		Secret:         "issuer-secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, _, err := issuer.GenerateAccessToken(TokenInput{AccountID: "account-123"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{
		Secret:         "other-secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestValidateAccessTokenRejectsForeignIssuer(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "other"})
	require.NoError(t, err)
	token, _, err := issuer.GenerateAccessToken(TokenInput{AccountID: "account-123"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "staffhub"})
	require.NoError(t, err)
	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, _, err := svc.GenerateAccessToken(TokenInput{AccountID: "account-123"})
	require.NoError(t, err)

	// Move time forward beyond expiry.
	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}
