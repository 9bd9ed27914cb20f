// Package auth provides the default identity collaborator: an HS256 JWT
// verifier that resolves a bearer token to a user id.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mohsin924ali/pentrypal/internal/realtime"
	"github.com/mohsin924ali/pentrypal/internal/wserrors"
)

const accessTokenType = "access"

// JWTResolver verifies HS256 access tokens carrying the user id in the "sub"
// claim and a "type" claim of "access". Refresh tokens are rejected.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve implements realtime.TokenResolver.
func (r *JWTResolver) Resolve(token string) (realtime.UserID, error) {
	if token == "" {
		return "", wserrors.Authentication("missing authentication token", nil)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", wserrors.Authentication("invalid authentication token", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", wserrors.Authentication("token has no subject", err)
	}
	if tokenType, _ := claims["type"].(string); tokenType != accessTokenType {
		return "", wserrors.Authentication("not an access token", nil)
	}

	return realtime.UserID(sub), nil
}
