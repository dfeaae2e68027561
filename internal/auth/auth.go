// Package auth covers the two credentials the service accepts: the shared
// study password carried in ingest URLs and request bodies, and short-lived
// bearer tokens issued from it for the query endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadCredentials covers both a wrong password and an unusable token.
var ErrBadCredentials = errors.New("bad credentials")

// Service checks passwords and mints tokens.
type Service struct {
	password string
	secret   []byte
	expiry   time.Duration
}

// New creates a Service. secret signs tokens; expiry bounds their lifetime.
func New(password, secret string, expiry time.Duration) *Service {
	return &Service{password: password, secret: []byte(secret), expiry: expiry}
}

// CheckPassword reports whether the supplied study password matches.
func (s *Service) CheckPassword(password string) bool {
	return password != "" && password == s.password
}

// IssueToken exchanges a valid password for a signed token and its lifetime
// in seconds.
func (s *Service) IssueToken(password string) (string, int64, error) {
	if !s.CheckPassword(password) {
		return "", 0, ErrBadCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "aware-filter",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, int64(s.expiry.Seconds()), nil
}

// VerifyToken validates a bearer token's signature and expiry.
func (s *Service) VerifyToken(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	return nil
}
