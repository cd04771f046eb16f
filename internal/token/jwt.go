// Package token validates bearer credentials for the identity resolver.
// Token structure and signature checks live here so the auth middleware only
// sees an opaque user identifier.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	gwerrors "phi-gateway/pkg/errors"
)

// Claims represents the JWT claims carried by access tokens. The subject
// claim holds the stable user identifier.
type Claims struct {
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
}

func NewService(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

// GenerateToken signs a token for the given user. Primarily used by tests and
// local tooling; production tokens come from the external identity provider
// sharing the signing key.
func (s *Service) GenerateToken(userID string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken checks signature and expiry and returns the subject user ID.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", gwerrors.New(gwerrors.CodeUnauthenticated, "token has expired")
		}
		return "", gwerrors.New(gwerrors.CodeUnauthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", gwerrors.New(gwerrors.CodeUnauthenticated, "invalid token claims")
	}
	if claims.Subject == "" {
		return "", gwerrors.New(gwerrors.CodeUnauthenticated, "token missing subject")
	}

	return claims.Subject, nil
}
