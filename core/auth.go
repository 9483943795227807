package core

import (
	"context"
	"sync"
)

// Claim names the adapter inspects.
const (
	ClaimAudience = "aud"
	ClaimAppID    = "appid"
)

// ClaimsIdentity is the authenticated identity of an inbound request.
type ClaimsIdentity struct {
	Claims          map[string]string
	IsAuthenticated bool
}

// GetClaimValue returns the named claim or the empty string.
func (ci *ClaimsIdentity) GetClaimValue(name string) string {
	if ci == nil {
		return ""
	}
	return ci.Claims[name]
}

// Authenticator validates an inbound request before the turn starts. A
// failure prevents any middleware or application logic from running.
type Authenticator interface {
	Authenticate(ctx context.Context, activity *Activity, authHeader string) (*ClaimsIdentity, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, activity *Activity, authHeader string) (*ClaimsIdentity, error)

// Authenticate calls the wrapped function.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, activity *Activity, authHeader string) (*ClaimsIdentity, error) {
	return f(ctx, activity, authHeader)
}

// AnonymousAuthenticator accepts every request with an unauthenticated
// identity. Suitable for local development against the emulator only.
type AnonymousAuthenticator struct{}

// Authenticate returns an anonymous identity for any request.
func (AnonymousAuthenticator) Authenticate(context.Context, *Activity, string) (*ClaimsIdentity, error) {
	return &ClaimsIdentity{Claims: map[string]string{}, IsAuthenticated: false}, nil
}

// TrustStore is the explicit, injectable set of service URLs outbound
// credentials may be attached to. Connector factories consult it before
// decorating requests; tests isolate instances instead of sharing a
// process-wide singleton.
type TrustStore struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewTrustStore returns an empty trust store.
func NewTrustStore() *TrustStore {
	return &TrustStore{urls: make(map[string]struct{})}
}

// AddServiceURL marks a service URL as trusted.
func (t *TrustStore) AddServiceURL(serviceURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.urls[serviceURL] = struct{}{}
}

// IsTrusted reports whether credentials may be attached for serviceURL.
func (t *TrustStore) IsTrusted(serviceURL string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.urls[serviceURL]
	return ok
}

// TokenPollingSettings is the structured guidance a token service returns
// while a sign-in is pending. A timeout <= 0 terminates polling; a
// positive interval replaces the default polling cadence. Values are in
// milliseconds.
type TokenPollingSettings struct {
	Timeout  int `json:"timeout"`
	Interval int `json:"interval"`
}

// TokenResponse is the result of a user token lookup. An empty Token with
// non-nil PollingSettings means the sign-in is still pending.
type TokenResponse struct {
	ConnectionName  string                `json:"connectionName"`
	Token           string                `json:"token,omitempty"`
	Expiration      string                `json:"expiration,omitempty"`
	PollingSettings *TokenPollingSettings `json:"pollingSettings,omitempty"`
}

// TokenStatus reports whether a named connection holds a token for a user.
type TokenStatus struct {
	ConnectionName  string `json:"connectionName"`
	HasToken        bool   `json:"hasToken"`
	ServiceProvider string `json:"serviceProviderDisplayName,omitempty"`
}

// TokenProvider is the out-of-band sign-in collaborator, keyed by user id
// plus named connection.
type TokenProvider interface {
	GetUserToken(ctx context.Context, userID, connectionName, channelID, magicCode string) (*TokenResponse, error)
	SignOutUser(ctx context.Context, userID, connectionName, channelID string) error
	GetTokenStatus(ctx context.Context, userID, channelID, includeFilter string) ([]TokenStatus, error)
}
