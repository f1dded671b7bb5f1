package googleauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// MessagingScope is the OAuth scope required by the FCM HTTP v1 API.
const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Options tunes the token exchange.
type Options struct {
	// CacheTokens reuses a token until EarlyExpiry before it expires.
	// When false every Authorize call performs a fresh exchange.
	CacheTokens bool
	EarlyExpiry time.Duration
	// TokenURL overrides the issuer endpoint from the credential.
	TokenURL   string
	HTTPClient *http.Client
}

// Provider performs the JWT bearer grant against the credential issuer.
type Provider struct {
	jwtConfig  *jwt.Config
	cached     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider builds a provider for the given credential. No network call is
// made until Authorize.
func NewProvider(cred Credential, opts Options, logger *slog.Logger) *Provider {
	tokenURL := google.JWTTokenURL
	if cred.TokenURI != "" {
		tokenURL = cred.TokenURI
	}
	if opts.TokenURL != "" {
		tokenURL = opts.TokenURL
	}

	p := &Provider{
		jwtConfig: &jwt.Config{
			Email:        cred.ClientEmail,
			PrivateKey:   []byte(cred.PrivateKey),
			PrivateKeyID: cred.PrivateKeyID,
			Scopes:       []string{MessagingScope},
			TokenURL:     tokenURL,
		},
		httpClient: opts.HTTPClient,
		logger:     logger.With("component", "CredentialProvider"),
	}

	if opts.CacheTokens {
		p.cached = oauth2.ReuseTokenSourceWithExpiry(nil, exchangeSource{p: p}, opts.EarlyExpiry)
		p.logger.Info("Access token caching enabled", "early_expiry", opts.EarlyExpiry)
	}
	return p
}

// Authorize returns a bearer token for the messaging gateway. Failures are
// wrapped with notification.ErrAuth.
func (p *Provider) Authorize(ctx context.Context) (notification.AccessToken, error) {
	src := p.cached
	if src == nil {
		src = p.jwtConfig.TokenSource(p.clientContext(ctx))
	}

	tok, err := src.Token()
	if err != nil {
		p.logger.Error("Token exchange failed", "issuer", p.jwtConfig.TokenURL, "err", err)
		return notification.AccessToken{}, fmt.Errorf("%w: %w", notification.ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return notification.AccessToken{}, fmt.Errorf("%w: %w", notification.ErrAuth, errors.New("issuer returned an empty access token"))
	}

	return notification.AccessToken{Value: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// exchangeSource performs a new exchange on every call. jwt.Config's own
// source caches with a fixed 10s expiry delta, which would defeat EarlyExpiry.
type exchangeSource struct {
	p *Provider
}

func (s exchangeSource) Token() (*oauth2.Token, error) {
	return s.p.jwtConfig.TokenSource(s.p.clientContext(context.Background())).Token()
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
