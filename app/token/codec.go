// Package token issues and validates the signed, expiring tokens used as
// session bearer credentials and as single-use action links (account
// activation, password reset).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the only failure Decode reports. Signature, expiry,
// not-before and purpose violations are deliberately indistinguishable so
// the codec cannot be used as an oracle.
var ErrInvalidToken = errors.New("invalid or expired token")

// Token purposes. A session token can never pass for an action token and
// vice versa, even though both are signed with the same secret.
const (
	PurposeSession = "session"
	PurposeAction  = "action"
)

type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens for a single purpose with a fixed
// default TTL. It is immutable and safe for concurrent use.
type Codec struct {
	secret  []byte
	ttl     time.Duration
	purpose string
}

func NewCodec(secret string, defaultTTL time.Duration, purpose string) *Codec {
	return &Codec{
		secret:  []byte(secret),
		ttl:     defaultTTL,
		purpose: purpose,
	}
}

// Issue signs a token for subject using the codec's default TTL.
func (c *Codec) Issue(subject string) (string, error) {
	return c.IssueWithTTL(subject, c.ttl)
}

// IssueWithTTL signs a token for subject expiring after ttl. A non-positive
// ttl falls back to the codec default.
func (c *Codec) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := time.Now()
	claims := &Claims{
		Purpose: c.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature, expiry, not-before and purpose of a token
// and returns its claims. Every failure mode yields ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != c.purpose || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
