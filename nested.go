package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/idplane/hooks/idtoken"
)

// nestedScope is the scope requested on every nested authorize redirect.
const nestedScope = "openid profile email"

// buildAuthorizeURL assembles the nested authorize redirect. prompt=login
// forces fresh credentials even when the secondary identity has a live
// session.
func buildAuthorizeURL(domain, clientID, connection, loginHint, nonce string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("prompt", "login")
	q.Set("scope", nestedScope)
	q.Set("connection", connection)
	q.Set("nonce", nonce)
	q.Set("redirect_uri", "https://"+domain+"/continue")
	if loginHint != "" {
		q.Set("login_hint", loginHint)
	}

	u := url.URL{
		Scheme:   "https",
		Host:     domain,
		Path:     "/authorize",
		RawQuery: q.Encode(),
	}
	return u.String()
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

// exchangeCode swaps an authorization code for an id token. One attempt, no
// retry: a second exchange of the same code would fail anyway.
func (r *Runtime) exchangeCode(ctx context.Context, domain, clientID, clientSecret, code string) (string, error) {
	if code == "" {
		return "", ErrMissingCode
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
		"redirect_uri":  "https://" + domain + "/continue",
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+domain+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrExchangeFailed, resp.StatusCode, msg)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrExchangeFailed, err)
	}
	if tr.IDToken == "" {
		return "", fmt.Errorf("%w: response missing id_token", ErrExchangeFailed)
	}
	return tr.IDToken, nil
}

// resolverFor returns the JWKS resolver for a tenant domain, creating it on
// first use. Resolver lifetime is process lifetime.
func (r *Runtime) resolverFor(domain string) (idtoken.KeyResolver, error) {
	if cached, ok := r.resolvers.Load(domain); ok {
		return cached.(idtoken.KeyResolver), nil
	}

	resolver, err := idtoken.NewJWKSResolver(context.Background(), "https://"+domain+"/.well-known/jwks.json", r.httpClient)
	if err != nil {
		return nil, err
	}

	actual, _ := r.resolvers.LoadOrStore(domain, idtoken.KeyResolver(resolver))
	return actual.(idtoken.KeyResolver), nil
}

// hostCacheAdapter bridges the host cache into the idtoken package.
type hostCacheAdapter struct {
	cache CacheAPI
}

func (a hostCacheAdapter) Get(key string) (string, bool) {
	entry, ok := a.cache.Get(key)
	return entry.Value, ok
}

func (a hostCacheAdapter) Set(key, value string) error {
	return a.cache.Set(key, value, CacheSetOptions{})
}

// verifyIDToken checks an id token minted by the tenant for the nested flows.
// Signing keys are memoized in the host cache under key-<kid>.
func (r *Runtime) verifyIDToken(ctx context.Context, domain, audience, raw, expectedNonce string, cache CacheAPI) (*idtoken.Claims, error) {
	resolver, err := r.resolverFor(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if cache != nil {
		resolver = idtoken.NewCachingResolver(resolver, hostCacheAdapter{cache: cache})
	}

	verifier, err := idtoken.NewVerifier(idtoken.Config{
		Issuer:   "https://" + domain + "/",
		Audience: audience,
		MaxAge:   r.config.Linking.MaxTokenAge,
	}, resolver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	claims, err := verifier.Verify(ctx, raw, expectedNonce)
	if err != nil {
		switch {
		case errors.Is(err, idtoken.ErrNonceMismatch):
			return nil, ErrNonceMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
	}
	return claims, nil
}
