// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package auth verifies the bearer tokens which authorize template renders.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingToken means the Authorization header was absent or not
	// in the form "Bearer {jwt}".
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken means the token was not understood, not signed
	// correctly, or missing required claims.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrSubjectMismatch means the token is valid but was issued for a
	// different subject.
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// InvalidTokenError wraps the reason a token was rejected.
type InvalidTokenError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidTokenError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidToken, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidTokenError) Unwrap() []error {
	return []error{ErrInvalidToken, e.Cause}
}

// Verifier checks HS256 signed tokens against a fixed issuer and audience.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewVerifier returns a Verifier for tokens signed with secret.
func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	v := &Verifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time {
			return v.now()
		}),
	)
	return v
}

// Verify extracts the bearer token from an Authorization header value and
// checks it was issued for subject.
func (v *Verifier) Verify(authorization, subject string) (*jwt.RegisteredClaims, error) {
	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok {
		return nil, ErrMissingToken
	}

	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, InvalidTokenError{Cause: err}
	}

	switch {
	case claims.IssuedAt == nil:
		return nil, InvalidTokenError{Cause: errors.New("missing iat claim")}
	case claims.ID == "":
		return nil, InvalidTokenError{Cause: errors.New("missing jti claim")}
	case claims.Subject == "":
		return nil, InvalidTokenError{Cause: errors.New("missing sub claim")}
	case claims.Subject != subject:
		return nil, ErrSubjectMismatch
	}
	return &claims, nil
}

// Sign issues a token for subject which expires after ttl.
func (v *Verifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Audience:  jwt.ClaimStrings{v.audience},
		Subject:   subject,
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
