package m2m

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrGrantFailed = errors.New("client credentials grant failed")

// Config identifies the grant target. Domain is the bare tenant domain
// without scheme.
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Audience     string
	HTTPClient   *http.Client
}

// Grantor obtains access tokens through the client-credentials flow.
type Grantor struct {
	cfg Config
}

func New(cfg Config) *Grantor {
	return &Grantor{cfg: cfg}
}

// Token performs one grant and returns the access token with its remaining
// lifetime. No retries: a failed grant surfaces immediately so the caller can
// decide between soft and hard failure.
func (g *Grantor) Token(ctx context.Context) (string, time.Duration, error) {
	cc := clientcredentials.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		TokenURL:     "https://" + g.cfg.Domain + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if g.cfg.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {g.cfg.Audience}}
	}

	if g.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.cfg.HTTPClient)
	}

	tok, err := cc.Token(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrGrantFailed, err)
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ErrGrantFailed)
	}

	lifetime := time.Until(tok.Expiry)
	if tok.Expiry.IsZero() || lifetime <= 0 {
		lifetime = time.Hour
	}
	return tok.AccessToken, lifetime, nil
}
