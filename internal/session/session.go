// Package session carries the authenticated user and family through service calls.
//
// A Session is passed explicitly to every family-scoped operation. HTTP
// handlers obtain one from the bearer token and store it on the request
// context; services never read ambient state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"famfin/internal/core"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid session token")
)

// Session identifies the caller and the family they act for.
type Session struct {
	UserID   string
	FamilyID string
	Role     core.Role
}

// Check returns ErrNotAuthenticated for a nil or incomplete session.
func Check(s *Session) error {
	if s == nil || s.UserID == "" || s.FamilyID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == core.RoleAdmin
}

type ctxKey struct{}

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored on ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

type claims struct {
	FamilyID string    `json:"fam"`
	Role     core.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for s.
func (i *Issuer) Issue(s Session) (string, error) {
	now := i.now()
	c := claims{
		FamilyID: s.FamilyID,
		Role:     s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse validates a token and returns the session it carries.
func (i *Issuer) Parse(token string) (*Session, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	s := &Session{UserID: c.Subject, FamilyID: c.FamilyID, Role: c.Role}
	if err := Check(s); err != nil {
		return nil, ErrInvalidToken
	}
	return s, nil
}
