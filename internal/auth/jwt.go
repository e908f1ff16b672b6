package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuth is returned for every rejected credential; callers never learn which check failed.
	ErrAuth = errors.New("authentication error")

	ErrAuthDisabled = errors.New("jwt secret not configured")
)

// Claims carries the user id under "id"; tokens that only set "sub" are accepted as well.
type Claims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier handles HS256 token signing and verification.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Generate issues a signed token for the given user id.
func (v *TokenVerifier) Generate(userID string, ttl time.Duration) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}

	now := time.Now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify validates the token and returns the user id it was issued for.
func (v *TokenVerifier) Verify(token string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: missing token", ErrAuth)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid claims", ErrAuth)
	}

	userID := strings.TrimSpace(claims.ID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token has no user id", ErrAuth)
	}
	return userID, nil
}
