package providers

import (
	"fmt"
	"strconv"
	"strings"
)

// Profile is the canonical identity shape the linking logic consumes. It is
// derived fresh on every callback and never stored.
type Profile struct {
	ProviderUserID string
	Email          string // empty when the provider does not expose one
	DisplayName    string
	AvatarURL      string
	Locale         string
	Raw            map[string]any
}

type normalizer func(raw map[string]any) Profile

var normalizers = map[string]normalizer{
	Google: func(raw map[string]any) Profile {
		return Profile{
			ProviderUserID: str(raw, "sub"),
			Email:          str(raw, "email"),
			DisplayName:    str(raw, "name"),
			AvatarURL:      str(raw, "picture"),
			Locale:         str(raw, "locale"),
		}
	},
	Apple: func(raw map[string]any) Profile {
		// Apple only sends the user's name on the very first authorization,
		// so the display name is usually empty here.
		return Profile{
			ProviderUserID: str(raw, "sub"),
			Email:          str(raw, "email"),
			DisplayName:    str(raw, "name"),
		}
	},
	AzureAD: func(raw map[string]any) Profile {
		email := str(raw, "email")
		if email == "" {
			email = str(raw, "preferred_username")
		}
		return Profile{
			ProviderUserID: str(raw, "sub"),
			Email:          email,
			DisplayName:    str(raw, "name"),
		}
	},
	GitLab: func(raw map[string]any) Profile {
		return Profile{
			ProviderUserID: str(raw, "sub"),
			Email:          str(raw, "email"),
			DisplayName:    str(raw, "name"),
			AvatarURL:      str(raw, "picture"),
		}
	},
	GitHub: func(raw map[string]any) Profile {
		name := str(raw, "name")
		if name == "" {
			name = str(raw, "login")
		}
		return Profile{
			ProviderUserID: numOrStr(raw, "id"),
			Email:          str(raw, "email"),
			DisplayName:    name,
			AvatarURL:      str(raw, "avatar_url"),
		}
	},
	Discord: func(raw map[string]any) Profile {
		name := str(raw, "global_name")
		if name == "" {
			name = str(raw, "username")
		}
		return Profile{
			ProviderUserID: str(raw, "id"),
			Email:          str(raw, "email"),
			DisplayName:    name,
			Locale:         str(raw, "locale"),
		}
	},
	Facebook: func(raw map[string]any) Profile {
		return Profile{
			ProviderUserID: str(raw, "id"),
			Email:          str(raw, "email"),
			DisplayName:    str(raw, "name"),
		}
	},
}

// Normalize maps a raw provider payload into the canonical profile. A
// provider without a dedicated mapping gets the generic OIDC claim names.
// A payload with no user id is unusable and fails.
func Normalize(provider string, raw map[string]any) (Profile, error) {
	if raw == nil {
		return Profile{}, fmt.Errorf("%s: empty profile payload", provider)
	}
	fn, ok := normalizers[provider]
	if !ok {
		fn = genericOIDC
	}
	p := fn(raw)
	p.Raw = raw
	// Emails compare case-insensitively everywhere downstream; canonicalize
	// once here so linking and storage agree.
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.ProviderUserID == "" {
		return Profile{}, fmt.Errorf("%s: profile payload has no user id", provider)
	}
	return p, nil
}

func genericOIDC(raw map[string]any) Profile {
	id := str(raw, "sub")
	if id == "" {
		id = numOrStr(raw, "id")
	}
	return Profile{
		ProviderUserID: id,
		Email:          str(raw, "email"),
		DisplayName:    str(raw, "name"),
		AvatarURL:      str(raw, "picture"),
		Locale:         str(raw, "locale"),
	}
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// numOrStr handles ids that arrive as JSON numbers (github) or strings.
func numOrStr(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
