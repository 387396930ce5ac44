package grazie

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("no token provided")
	ErrTokenExpired = errors.New("token is expired")
)

// TokenInfo is what can be read from a token without verifying it. The
// gateway owns the signing keys, so the signature is never checked here.
type TokenInfo struct {
	JWT       bool
	Subject   string
	ExpiresAt *time.Time
}

// InspectToken rejects empty and already-expired JWTs before any network
// call. Opaque (non-JWT) tokens are passed through for the gateway to judge.
func InspectToken(token string) (TokenInfo, error) {
	return inspectToken(token, time.Now())
}

func inspectToken(token string, now time.Time) (TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenInfo{}, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, nil
	}

	info := TokenInfo{JWT: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
		if !exp.After(now) {
			return info, ErrTokenExpired
		}
	}
	return info, nil
}
