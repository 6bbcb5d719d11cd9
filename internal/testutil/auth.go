package testutil

import (
	"testing"
	"time"

	"wedding-chat/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const JWTSecret = "test-secret"

// SignToken mints an HS256 access token the way the identity provider does.
func SignToken(t *testing.T, secret string, id services.Identity) string {
	t.Helper()

	now := time.Now()
	claims := services.AccessClaims{
		UserID: id.UserID.String(),
		Name:   id.Name,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
