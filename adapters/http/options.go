package authhttp

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/hk-meko/hasura-auth/core"
	"github.com/hk-meko/hasura-auth/handshake"
)

var localeRe = regexp.MustCompile(`^[a-z]{2}$`)

// parseSignUpOptions reads the registration options from the query string.
// Invalid values are recoverable and fall back to the configured defaults;
// only the redirect target is allowed to fail the request.
func parseSignUpOptions(q url.Values, opts core.Options) handshake.Options {
	out := handshake.Options{
		DisplayName:  strings.TrimSpace(q.Get("displayName")),
		Locale:       opts.DefaultLocale,
		DefaultRole:  opts.DefaultRole,
		AllowedRoles: opts.AllowedRoles,
	}

	if loc := strings.ToLower(strings.TrimSpace(q.Get("locale"))); localeRe.MatchString(loc) {
		out.Locale = loc
	}

	if role := strings.TrimSpace(q.Get("defaultRole")); role != "" && contains(opts.AllowedRoles, role) {
		out.DefaultRole = role
	}

	if raw := q.Get("allowedRoles"); raw != "" {
		var roles []string
		for _, role := range strings.Split(raw, ",") {
			role = strings.TrimSpace(role)
			if role != "" && contains(opts.AllowedRoles, role) {
				roles = append(roles, role)
			}
		}
		if len(roles) > 0 {
			out.AllowedRoles = roles
		}
	}
	if !contains(out.AllowedRoles, out.DefaultRole) {
		out.AllowedRoles = append(out.AllowedRoles, out.DefaultRole)
	}

	if raw := q.Get("metadata"); raw != "" {
		md := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &md); err == nil {
			out.Metadata = md
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
