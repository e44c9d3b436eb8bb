package idtoken

import (
	"context"
	"crypto"
	"fmt"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKSResolver fetches signing keys from the tenant JWKS endpoint through a
// refreshing cache, so repeated lookups of a known kid stay off the network.
type JWKSResolver struct {
	url   string
	cache *jwk.Cache
}

// NewJWKSResolver registers the JWKS URL with a background-refreshing cache.
// ctx bounds the lifetime of the refresh loop.
func NewJWKSResolver(ctx context.Context, jwksURL string, httpClient *http.Client) (*JWKSResolver, error) {
	cache := jwk.NewCache(ctx)

	opts := []jwk.RegisterOption{}
	if httpClient != nil {
		opts = append(opts, jwk.WithHTTPClient(httpClient))
	}
	if err := cache.Register(jwksURL, opts...); err != nil {
		return nil, fmt.Errorf("register jwks url: %w", err)
	}

	return &JWKSResolver{
		url:   jwksURL,
		cache: cache,
	}, nil
}

// Resolve implements [KeyResolver].
func (r *JWKSResolver) Resolve(ctx context.Context, kid string) (crypto.PublicKey, error) {
	set, err := r.cache.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	var pub crypto.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("materialize jwk %q: %w", kid, err)
	}
	return pub, nil
}
