// Package oauthkit executes the wire protocol against external identity
// providers: the authorization redirect and the code/token exchange. The
// handshake state machine upstream only ever sees this narrow interface, so
// each provider family is a pluggable adapter.
package oauthkit

import (
	"context"

	"github.com/hk-meko/hasura-auth/providers"
)

// BeginRequest is everything an engine needs to build the authorization URL.
type BeginRequest struct {
	Provider    string
	RedirectURI string // our callback URL
	State       string
	Nonce       string
	Verifier    string // PKCE code verifier
	ExtraParams map[string]string
}

// CallbackRequest carries the provider-returned callback parameters together
// with the protocol state persisted at initiation.
type CallbackRequest struct {
	Provider    string
	RedirectURI string
	Code        string
	Nonce       string
	Verifier    string
}

// Result is the opaque provider response: tokens plus the raw identity
// payload (verified id_token claims or a userinfo document).
type Result struct {
	AccessToken  string
	RefreshToken string
	Profile      map[string]any
}

// Engine performs the provider redirect and the authorization-code exchange.
type Engine interface {
	BeginAuthorization(ctx context.Context, cfg providers.Config, req BeginRequest) (authURL string, err error)
	CompleteAuthorization(ctx context.Context, cfg providers.Config, req CallbackRequest) (Result, error)
}

var (
	defaultOIDC = &OIDCEngine{}
	defaultWeb  = NewOAuth2Engine(nil)
)

// ForProvider selects the engine for a provider slug: plain OAuth2 for the
// providers that expose a userinfo API instead of OIDC discovery, the OIDC
// relying-party engine for everything else.
func ForProvider(provider string) Engine {
	if _, ok := oauth2Providers[provider]; ok {
		return defaultWeb
	}
	return defaultOIDC
}
