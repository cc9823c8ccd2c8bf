package core

import (
	"time"

	jwtkit "github.com/hk-meko/hasura-auth/jwt"
	"github.com/hk-meko/hasura-auth/providers"
)

// Config is the high-level configuration handed to NewFromConfig.
type Config struct {
	Issuer          string
	IssuedAudiences []string

	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	// ServerURL is this service's public base URL, used to build provider
	// callback URLs when the request headers cannot be trusted. Optional;
	// when empty the callback URL is derived from the incoming request.
	ServerURL string
	// TrustForwardedHeaders allows X-Forwarded-Proto/Host to override the
	// request host when deriving callback URLs. Only enable behind a proxy
	// that strips client-supplied forwarding headers.
	TrustForwardedHeaders bool
	// ClientURL is the default redirect target when the caller supplies
	// none, and the first entry of the allow list.
	ClientURL string
	// AllowedRedirectURLs restricts where a handshake may send the browser
	// afterwards. Empty means any syntactically valid URL is accepted.
	AllowedRedirectURLs []string

	// Registration-option bounds. Invalid caller-supplied options fall back
	// to these instead of failing the handshake.
	DefaultRole   string
	AllowedRoles  []string
	DefaultLocale string

	// Keys signs application access tokens. Nil generates a development key.
	Keys *jwtkit.RSASigner

	// Providers holds one config group per identity provider, validated
	// lazily per request by the registry.
	Providers map[string]providers.Config
}

// Options is the immutable runtime view of Config after defaulting.
type Options struct {
	Issuer                string
	IssuedAudiences       []string
	AccessTokenDuration   time.Duration
	RefreshTokenDuration  time.Duration
	ServerURL             string
	TrustForwardedHeaders bool
	ClientURL             string
	AllowedRedirectURLs   []string
	DefaultRole           string
	AllowedRoles          []string
	DefaultLocale         string
}
