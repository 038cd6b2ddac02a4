// Package token signs and verifies the self-contained credentials of the
// service: short-lived access tokens, rotating refresh tokens and branch kiosk
// tokens. All three share one HMAC secret and are told apart by the mandatory
// "use" claim; a token is only accepted by the codec matching its use.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Use is the signed discriminator separating token kinds.
type Use string

const (
	UseAccess  Use = "access"
	UseRefresh Use = "refresh"
	UseKiosk   Use = "kiosk"
)

const DefaultIssuer = "cspacehr"

// Verification failures. Codecs return exactly one of these (possibly wrapped
// with detail) and never panic on hostile input.
var (
	ErrExpired           = errors.New("token expired")
	ErrMalformed         = errors.New("token malformed")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrWrongType         = errors.New("token type mismatch")
)

// Option configures a codec.
type Option func(*signer)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIssuer sets the iss claim written and required on verification.
func WithIssuer(iss string) Option {
	return func(s *signer) {
		if iss != "" {
			s.issuer = iss
		}
	}
}

type signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func newSigner(secret string, opts []Option) signer {
	s := signer{secret: []byte(secret), issuer: DefaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s signer) registered(subject, id string, ttl time.Duration) (jwt.RegisteredClaims, error) {
	if ttl <= 0 {
		return jwt.RegisteredClaims{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}, nil
}

func (s signer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parse verifies signature, issuer and expiry and fills claims.
func (s signer) parse(raw string, claims jwt.Claims) error {
	if raw == "" {
		return ErrMalformed
	}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
	)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureMismatch
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func expect(got, want Use) error {
	if got != want {
		return fmt.Errorf("%w: want %q, got %q", ErrWrongType, want, got)
	}
	return nil
}
