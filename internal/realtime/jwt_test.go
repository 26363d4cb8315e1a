package realtime

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyViewerToken(t *testing.T) {
	secret := "test-secret"
	signed := signTestToken(t, secret, "viewer-1")

	claims, err := VerifyViewerToken(secret, signed)
	require.NoError(t, err)
	assert.Equal(t, "viewer-1", claimString(claims, "sub"))
}

func TestVerifyViewerTokenWrongSecret(t *testing.T) {
	signed := signTestToken(t, "secret-a", "viewer-1")

	_, err := VerifyViewerToken("secret-b", signed)
	assert.Error(t, err)
}

func TestVerifyViewerTokenExpired(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "viewer-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = VerifyViewerToken("test-secret", signed)
	assert.Error(t, err)
}

func TestVerifyViewerTokenRejectsGarbage(t *testing.T) {
	_, err := VerifyViewerToken("test-secret", "not.a.token")
	assert.Error(t, err)
}
