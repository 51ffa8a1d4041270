// Package token decodes access token claims and predicts expiry.
//
// The SDK never verifies signatures; the server owns that. Claims are
// decoded from the base64url payload only, to decide whether the token is
// worth sending or should be renewed first.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	vistream "github.com/vistream/vistream-go"
)

// Claims are the decision-relevant claims of an access token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Parse decodes the claims of a header.payload.signature token without
// verifying the signature. Tokens that cannot be decoded, or that carry no
// exp claim, fail with an error matching vistream.ErrMalformedToken.
func Parse(raw string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("vistream/token: %w: %v", vistream.ErrMalformedToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("vistream/token: %w: unexpected claims type", vistream.ErrMalformedToken)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("vistream/token: %w: missing exp claim", vistream.ErrMalformedToken)
	}

	c := &Claims{ExpiresAt: exp.Time}
	if sub, err := mapClaims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

// Inspector predicts token expiry with a configurable skew.
type Inspector struct {
	skew time.Duration
	now  func() time.Time
}

// Option configures the Inspector.
type Option func(*Inspector)

// WithSkew sets the safety margin subtracted from the token lifetime.
// Default: 60 seconds.
func WithSkew(d time.Duration) Option {
	return func(i *Inspector) { i.skew = d }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Inspector) { i.now = now }
}

// NewInspector creates an Inspector with the given options.
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{
		skew: vistream.DefaultTokenSkew,
		now:  time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Expired reports whether raw should be renewed before use: its exp is at
// or before now+skew, or its claims could not be decoded at all.
func (i *Inspector) Expired(raw string) bool {
	claims, err := Parse(raw)
	if err != nil {
		return true
	}
	return !claims.ExpiresAt.After(i.now().Add(i.skew))
}
