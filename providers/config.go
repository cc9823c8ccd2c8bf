package providers

import "fmt"

// Provider slugs supported out of the box. The registry accepts any slug;
// these are the ones with dedicated normalizers and engine wiring.
const (
	Google   = "google"
	Apple    = "apple"
	AzureAD  = "azuread"
	GitLab   = "gitlab"
	GitHub   = "github"
	Discord  = "discord"
	Facebook = "facebook"
)

// Config holds one provider's credentials plus the extra fields some
// providers mandate. Which extras are required is decided per provider by
// the validation table below, so a google entry never carries a tenant and
// an apple entry never carries a client secret.
type Config struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	Scopes       []string

	// azuread: directory tenant ("common" when unset).
	Tenant string
	// gitlab: self-hosted base URL (https://gitlab.com when unset).
	BaseURL string
	// apple: client secrets are short-lived ES256 JWTs minted from these.
	KeyID      string
	TeamID     string
	PrivateKey string // PEM-encoded EC private key
}

// requirement describes what an enabled provider must carry beyond ClientID.
type requirement struct {
	clientSecret bool
	extras       []extraField
}

type extraField struct {
	name    string
	present func(Config) bool
}

var requirements = map[string]requirement{
	Google:   {clientSecret: true},
	GitHub:   {clientSecret: true},
	Discord:  {clientSecret: true},
	Facebook: {clientSecret: true},
	GitLab:   {clientSecret: true},
	AzureAD:  {clientSecret: true},
	Apple: {extras: []extraField{
		{"keyId", func(c Config) bool { return c.KeyID != "" }},
		{"teamId", func(c Config) bool { return c.TeamID != "" }},
		{"privateKey", func(c Config) bool { return c.PrivateKey != "" }},
	}},
}

var defaultScopes = map[string][]string{
	Google:   {"openid", "email", "profile"},
	Apple:    {"openid", "email", "name"},
	AzureAD:  {"openid", "email", "profile"},
	GitLab:   {"openid", "email", "profile"},
	GitHub:   {"read:user", "user:email"},
	Discord:  {"identify", "email"},
	Facebook: {"email", "public_profile"},
}

// Validate reports whether an enabled provider carries everything the
// protocol engine will need. It runs per request so one misconfigured
// provider degrades to an error redirect instead of failing startup.
func Validate(provider string, cfg Config) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("provider %s: missing client id", provider)
	}
	req, ok := requirements[provider]
	if !ok {
		// Unlisted providers get the common OAuth2 treatment.
		req = requirement{clientSecret: true}
	}
	if req.clientSecret && cfg.ClientSecret == "" {
		return fmt.Errorf("provider %s: missing client secret", provider)
	}
	for _, f := range req.extras {
		if !f.present(cfg) {
			return fmt.Errorf("provider %s: missing %s", provider, f.name)
		}
	}
	return nil
}

// withDefaults fills per-provider defaults for optional fields.
func withDefaults(provider string, cfg Config) Config {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes[provider]
	}
	if provider == AzureAD && cfg.Tenant == "" {
		cfg.Tenant = "common"
	}
	if provider == GitLab && cfg.BaseURL == "" {
		cfg.BaseURL = "https://gitlab.com"
	}
	return cfg
}
