package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrVerification covers every reason a token is rejected before its payload
// is looked at: malformed, bad signature, expired, not yet valid, wrong
// algorithm or no secret configured. The wrapped cause is for logging only.
var ErrVerification = errors.New("token verification failed")

// hmacMethods are the only algorithms a shared secret can verify
var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Claims is the decoded payload of a verified token
type Claims map[string]any

// Verify checks token against secret and returns its claims.
// An empty secret never verifies anything.
func Verify(token, secret string) (Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret configured", ErrVerification)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrVerification)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods(hmacMethods))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if !parsed.Valid {
		return nil, ErrVerification
	}

	return Claims(claims), nil
}
