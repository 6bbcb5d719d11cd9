package services

import (
	"context"
	"strings"

	chat_errors "wedding-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are issued by the marketplace identity provider. This service
// only verifies them.
type AccessClaims struct {
	UserID string `json:"sub"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated participant bound to a request or socket.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate verifies a bearer token and returns the identity it carries.
func (s *AuthService) Authenticate(tokenString string) (Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID == uuid.Nil {
		return Identity{}, chat_errors.ErrUnauthorized
	}
	return Identity{
		UserID: userID,
		Name:   strings.TrimSpace(claims.Name),
		Email:  strings.TrimSpace(claims.Email),
	}, nil
}

type ctxKey string

var identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return id.UserID, true
}
