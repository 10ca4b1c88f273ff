// Package auth handles the API token: decoding its claims for client-side
// validity checks and persisting it between CLI invocations.
package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned by Token.Valid for expired tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrNoSession is returned when no token has been saved.
	ErrNoSession = errors.New("not logged in")
)

// expiryLeeway treats tokens about to expire as expired, so a request is
// not sent with a token that lapses in flight.
const expiryLeeway = 30 * time.Second

// Token is a decoded API token. The signature is not verified; the server
// does that. The client only reads the claims it needs.
type Token struct {
	Raw       string
	TeamID    string
	Email     string
	ExpiresAt time.Time
}

// ParseToken decodes raw without verifying its signature.
func ParseToken(raw string) (*Token, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims := token.Claims.(gojwt.MapClaims)

	t := &Token{Raw: raw}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if exp != nil {
		t.ExpiresAt = exp.Time
	}
	if teamID, ok := claims["team_id"].(string); ok {
		t.TeamID = teamID
	}
	if email, ok := claims["email"].(string); ok {
		t.Email = email
	}
	return t, nil
}

// Valid reports ErrTokenExpired when the token is expired at now. Tokens
// without an expiry are always valid.
func (t *Token) Valid(now time.Time) error {
	if t.ExpiresAt.IsZero() {
		return nil
	}
	if !now.Add(expiryLeeway).Before(t.ExpiresAt) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, t.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
