package app

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "wallserv_test_jwt_secret_key_1234567890"

func TestTokenIssuer(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "wallserv", time.Hour)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		token, err := issuer.Issue("65a1f0c2e4b0a1b2c3d4e5f6")
		require.NoError(t, err)

		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", claims.UserID)
		assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", claims.Subject)
		assert.Equal(t, "wallserv", claims.Issuer)
	})

	t.Run("expired", func(t *testing.T) {
		past := issuer.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		token, err := past.Issue("65a1f0c2e4b0a1b2c3d4e5f6")
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other, err := NewTokenIssuer("another_secret_that_is_long_enough_000", "wallserv", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue("65a1f0c2e4b0a1b2c3d4e5f6")
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		other, err := NewTokenIssuer(testSecret, "someone-else", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue("65a1f0c2e4b0a1b2c3d4e5f6")
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := Claims{
			UserID: "65a1f0c2e4b0a1b2c3d4e5f6",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "65a1f0c2e4b0a1b2c3d4e5f6",
				Issuer:    "wallserv",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)

		_, err = issuer.Verify("")
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestNewTokenIssuerRejectsWeakSettings(t *testing.T) {
	_, err := NewTokenIssuer("short", "wallserv", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenIssuer(testSecret, "wallserv", 0)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer abc.def.ghi", "abc.def.ghi", nil},
		{"  Bearer   abc.def.ghi  ", "abc.def.ghi", nil},
		{"", "", ErrNoToken},
		{"Bearer", "", ErrNoToken},
		{"Bearer ", "", ErrNoToken},
		{"Basic dXNlcjpwYXNz", "", ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, err := BearerToken(tt.header)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong horse", hash))
	assert.Equal(t, "$2a$10$", hash[:7])

	_, err = HashPassword(strings.Repeat("p", MaxPasswordBytes), MinPasswordCost)
	assert.NoError(t, err)
	_, err = HashPassword(strings.Repeat("p", MaxPasswordBytes+1), MinPasswordCost)
	assert.ErrorIs(t, err, ErrValidation)
}
