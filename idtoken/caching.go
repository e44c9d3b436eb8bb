package idtoken

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
)

// Cache is the slice of the host cache the resolver needs. Values are
// strings, so keys round-trip through PEM.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// CachingResolver layers the host cache over another resolver. Keys are
// stored under "key-<kid>" as PEM-encoded PKIX public keys. Cache write
// failures are logged and ignored; the resolved key is still returned.
type CachingResolver struct {
	inner KeyResolver
	cache Cache
}

func NewCachingResolver(inner KeyResolver, cache Cache) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		cache: cache,
	}
}

func cacheKey(kid string) string {
	return "key-" + kid
}

// Resolve implements [KeyResolver].
func (r *CachingResolver) Resolve(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if cached, ok := r.cache.Get(cacheKey(kid)); ok {
		if pub, err := decodeKey(cached); err == nil {
			return pub, nil
		}
		// Corrupt entries fall through to the inner resolver and get rewritten.
	}

	pub, err := r.inner.Resolve(ctx, kid)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeKey(pub)
	if err == nil {
		if err := r.cache.Set(cacheKey(kid), encoded); err != nil {
			log.Print("hooks: signing key cache write failed: ", err)
		}
	}

	return pub, nil
}

func encodeKey(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	block := pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(&block)), nil
}

func decodeKey(encoded string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil {
		return nil, fmt.Errorf("no pem block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}
