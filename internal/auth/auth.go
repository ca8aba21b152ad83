// Package auth holds the admin's Google session: the OAuth consent flow,
// the in-memory access token and its revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// CalendarEventsScope lets the session read and insert events.
	CalendarEventsScope = "https://www.googleapis.com/auth/calendar.events"

	// DefaultRevokeURL is Google's token revocation endpoint.
	DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	exchangeTimeout = 10 * time.Second
	stateTTL        = 10 * time.Minute
)

var (
	// ErrNotReady is returned when no OAuth client id is configured.
	ErrNotReady = errors.New("google sign-in is not configured")
	// ErrInvalidState is returned when the callback state is unknown or expired.
	ErrInvalidState = errors.New("oauth state is invalid or expired")
	// ErrConsentDenied is returned when the user declines the consent screen.
	ErrConsentDenied = errors.New("google sign-in was cancelled")
)

// NewOAuthConfig builds the OAuth client config for Google's web flow.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{CalendarEventsScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// Authorizer runs the consent flow and hands out the session token.
type Authorizer struct {
	// RevokeURL and HTTPClient default to Google and http.DefaultClient.
	RevokeURL  string
	HTTPClient *http.Client

	config *oauth2.Config
	store  TokenStore

	mu     sync.Mutex
	states map[string]time.Time
	source oauth2.TokenSource
	now    func() time.Time
}

// NewAuthorizer creates an Authorizer. A nil store means an in-memory store.
func NewAuthorizer(config *oauth2.Config, store TokenStore) *Authorizer {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &Authorizer{
		RevokeURL: DefaultRevokeURL,
		config:    config,
		store:     store,
		states:    make(map[string]time.Time),
		now:       time.Now,
	}
}

// Ready reports whether an OAuth client id is configured.
func (a *Authorizer) Ready() bool {
	return a.config != nil && a.config.ClientID != ""
}

// AuthURL returns the consent URL with a fresh single-use state.
func (a *Authorizer) AuthURL() (string, error) {
	if !a.Ready() {
		return "", ErrNotReady
	}

	state := uuid.NewString()
	a.mu.Lock()
	a.pruneStatesLocked()
	a.states[state] = a.now()
	a.mu.Unlock()

	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (a *Authorizer) pruneStatesLocked() {
	cutoff := a.now().Add(-stateTTL)
	for state, issued := range a.states {
		if issued.Before(cutoff) {
			delete(a.states, state)
		}
	}
}

// Exchange trades the callback code for a token and keeps it in the store.
// The exchange is bounded by a 10 second timeout.
func (a *Authorizer) Exchange(ctx context.Context, state, code string) error {
	if !a.Ready() {
		return ErrNotReady
	}

	a.mu.Lock()
	issued, ok := a.states[state]
	delete(a.states, state)
	a.mu.Unlock()
	if !ok || a.now().Sub(issued) > stateTTL {
		return ErrInvalidState
	}
	if code == "" {
		return fmt.Errorf("no authorization code received")
	}

	ctx, cancel := context.WithTimeout(a.clientContext(ctx), exchangeTimeout)
	defer cancel()

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := a.store.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	a.mu.Lock()
	a.source = nil
	a.mu.Unlock()
	return nil
}

// Token returns the current access token, refreshing it when expired.
// It returns nil, nil when the admin has not connected Google.
func (a *Authorizer) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.source == nil {
		token, err := a.store.LoadToken()
		if err != nil {
			return nil, fmt.Errorf("failed to load token: %w", err)
		}
		if token == nil {
			return nil, nil
		}
		var refresher oauth2.TokenSource = oauth2.StaticTokenSource(token)
		if a.config != nil {
			refresher = a.config.TokenSource(a.clientContext(context.Background()), token)
		}
		a.source = &autoSaveTokenSource{
			source:     oauth2.ReuseTokenSource(token, refresher),
			tokenStore: a.store,
			lastToken:  token,
		}
	}

	return a.source.Token()
}

// Connected reports whether a token is held.
func (a *Authorizer) Connected() bool {
	token, err := a.store.LoadToken()
	return err == nil && token != nil
}

// Disconnect forgets the token and asks Google to revoke it. The token is
// forgotten even when revocation fails.
func (a *Authorizer) Disconnect(ctx context.Context) error {
	token, err := a.store.LoadToken()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	a.mu.Lock()
	a.source = nil
	a.mu.Unlock()
	if err := a.store.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	form := url.Values{"token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (a *Authorizer) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

// clientContext makes the oauth2 package use HTTPClient for token calls.
func (a *Authorizer) clientContext(ctx context.Context) context.Context {
	if a.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.HTTPClient)
}
