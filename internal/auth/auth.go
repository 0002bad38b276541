// Package auth verifies bearer credentials.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hpungsan/hookah/internal/errors"
)

// Verifier maps a bearer token to a user identifier.
// Failures are UNAUTHORIZED errors.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims is the token payload. UserID is the only claim the service reads.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier for secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

// Verify parses and validates token and returns its userId claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.NewUnauthorized("Unauthorized", nil)
	}
	if len(v.secret) == 0 {
		return "", errors.NewUnauthorized("Unauthorized", fmt.Errorf("no jwt secret configured"))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", errors.NewUnauthorized("Invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", errors.NewUnauthorized("Invalid token", nil)
	}
	if claims.UserID == "" {
		return "", errors.NewUnauthorized("Invalid token", fmt.Errorf("missing userId claim"))
	}
	return claims.UserID, nil
}

// Sign issues an HS256 token for userID. ttl <= 0 means no expiry.
func (v *JWTVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	claims := Claims{UserID: userID}
	now := v.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.NewUnauthorized("Unauthorized", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.NewUnauthorized("Invalid Authorization header format", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}
