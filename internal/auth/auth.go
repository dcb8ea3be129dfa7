// Package auth implements the Spotify OAuth login flow and binds its result
// to the visitor's session.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret")

// Scopes requested at login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserTopRead,
}

// Config configures an Authenticator.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// HTTPClient is used for the token exchange and all API calls made with
	// the resulting token. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Authenticator handles Spotify OAuth2 authentication.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	redirectURI string
	httpClient  *http.Client
}

// New creates an Authenticator.
func New(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(Scopes...),
	)

	return &Authenticator{
		auth:        auth,
		redirectURI: cfg.RedirectURI,
		httpClient:  cfg.HTTPClient,
	}, nil
}

// RedirectURI returns the configured callback URL.
func (a *Authenticator) RedirectURI() string {
	return a.redirectURI
}

// AuthURL returns the consent page URL. The account chooser is always shown
// so a visitor can switch Spotify accounts without logging out of Spotify.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state, spotifyauth.ShowDialog)
}

// Exchange trades an authorization code for a new token.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return a.auth.Exchange(a.context(ctx), code)
}

// Client returns an API client for token. The token is refreshed by oauth2
// when it expires; read the current one back with Client.Token.
func (a *Authenticator) Client(ctx context.Context, token *oauth2.Token) *spotify.Client {
	return spotify.New(a.auth.Client(a.context(ctx), token), spotify.WithRetry(true))
}

func (a *Authenticator) context(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
