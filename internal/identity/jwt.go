package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity as the subject of a standard registered claim set.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTTokenSource issues short-lived HS256 tokens for an identity.
type JWTTokenSource struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenSource(secret string, ttl time.Duration) *JWTTokenSource {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTTokenSource{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *JWTTokenSource) Token(ctx context.Context, identity string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.secret) == 0 {
		return "", ErrNoTokenIssuer
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: identity,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the identity it carries.
func ParseToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}
