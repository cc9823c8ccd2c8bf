package handshake

import (
	"crypto/rand"
	"time"

	"github.com/mr-tron/base58"
)

// Options are the caller-supplied registration options captured at initiation
// and replayed when the callback has to create a brand-new user.
type Options struct {
	DisplayName  string            `json:"displayName,omitempty"`
	Locale       string            `json:"locale,omitempty"`
	DefaultRole  string            `json:"defaultRole,omitempty"`
	AllowedRoles []string          `json:"allowedRoles,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Session is the transient state that correlates the initiation request with
// the provider callback. It lives only for the duration of one handshake and
// is destroyed exactly once when the callback completes or the TTL expires.
type Session struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"createdAt"`
	RedirectTo string    `json:"redirectTo"`
	Options    Options   `json:"options"`

	// Protocol state handed to the OAuth engine: the state parameter echoed
	// by the provider, plus nonce and PKCE verifier for OIDC providers.
	State    string `json:"state"`
	Nonce    string `json:"nonce,omitempty"`
	Verifier string `json:"verifier,omitempty"`
}

// NewID returns an unguessable session identifier: 32 bytes from crypto/rand,
// base58-encoded so it is safe in cookies and log lines.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}
