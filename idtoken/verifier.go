package idtoken

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is an exported constant or variable used by the hooks library.
	ErrInvalidToken = errors.New("invalid id token")
	// ErrNonceMismatch is an exported constant or variable used by the hooks library.
	ErrNonceMismatch = errors.New("id token nonce mismatch")
	// ErrTokenTooOld is an exported constant or variable used by the hooks library.
	ErrTokenTooOld = errors.New("id token exceeds max age")
	// ErrKeyNotFound is an exported constant or variable used by the hooks library.
	ErrKeyNotFound = errors.New("signing key not found")
)

// KeyResolver maps a key id from a token header to the public signing key.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// Config defines a public type used by hooks APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Issuer must match the iss claim exactly, trailing slash included.
	Issuer   string
	Audience string
	// MaxAge bounds iat: tokens issued longer ago are rejected even when exp
	// has not passed.
	MaxAge time.Duration
	Leeway time.Duration
}

// Claims defines a public type used by hooks APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// Verifier defines a public type used by hooks APIs.
//
// Verifier instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Verifier struct {
	cfg      Config
	resolver KeyResolver
}

// NewVerifier describes the newverifier operation and its observable behavior.
//
// NewVerifier may return an error when input validation, dependency calls, or security checks fail.
func NewVerifier(cfg Config, resolver KeyResolver) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if resolver == nil {
		return nil, errors.New("key resolver required")
	}
	return &Verifier{cfg: cfg, resolver: resolver}, nil
}

// Verify parses and validates an RS256 id token. The expected nonce is
// compared against the nonce claim; pass the value planted on the outbound
// authorize request.
func (v *Verifier) Verify(ctx context.Context, raw, expectedNonce string) (*Claims, error) {
	claims := &Claims{}

	keyfunc := func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrInvalidToken)
		}
		return v.resolver.Resolve(ctx, kid)
	}

	_, err := jwt.ParseWithClaims(raw, claims, keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat claim", ErrInvalidToken)
	}
	if time.Since(claims.IssuedAt.Time) > v.cfg.MaxAge+v.cfg.Leeway {
		return nil, ErrTokenTooOld
	}

	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return nil, ErrNonceMismatch
	}

	return claims, nil
}
