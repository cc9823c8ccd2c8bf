package authhttp

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const cookieName = "hasuraAuthHandshake"

// parseRedirectTo validates the caller-supplied redirect target. This is the
// one input error that cannot resolve to an error redirect, since the target
// itself is what is broken.
func (s *Service) parseRedirectTo(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("redirectUrl"))
	if raw == "" {
		if s.opts.ClientURL == "" {
			return "", errors.New("redirectUrl required")
		}
		return s.opts.ClientURL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("redirectUrl must be an absolute http(s) URL")
	}
	if len(s.opts.AllowedRedirectURLs) > 0 && !redirectAllowed(raw, s.opts.AllowedRedirectURLs) {
		return "", errors.New("redirectUrl is not in the allow list")
	}
	return raw, nil
}

func redirectAllowed(target string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.TrimRight(a, "/")
		if a == "" {
			continue
		}
		if target == a || strings.HasPrefix(target, a+"/") || strings.HasPrefix(target, a+"?") {
			return true
		}
	}
	return false
}

// redirectWithToken sends the browser back to the client application with
// the application refresh token attached.
func redirectWithToken(w http.ResponseWriter, r *http.Request, target, refreshToken string) {
	http.Redirect(w, r, appendQuery(target, url.Values{"refreshToken": {refreshToken}}), http.StatusFound)
}

// redirectWithError sends the browser back with a machine-readable error
// code plus a human-readable description.
func redirectWithError(w http.ResponseWriter, r *http.Request, target, provider, code, description string) {
	q := url.Values{
		"error":            {code},
		"provider":         {provider},
		"errorDescription": {description},
	}
	http.Redirect(w, r, appendQuery(target, q), http.StatusFound)
}

// appendQuery preserves the target URL as-is and only appends parameters.
// Parameters go before any fragment, which fragment-routing clients keep.
func appendQuery(target string, q url.Values) string {
	base, frag, hasFrag := strings.Cut(target, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	out := base + sep + q.Encode()
	if hasFrag {
		out += "#" + frag
	}
	return out
}

// setHandshakeCookie scopes the session cookie to this provider's handshake
// paths only. Providers that return via cross-site form POST need
// SameSite=None for the cookie to accompany the callback.
func setHandshakeCookie(w http.ResponseWriter, provider, sessionID string, crossSite bool) {
	c := &http.Cookie{
		Name:     cookieName,
		Value:    sessionID,
		Path:     "/signin/provider/" + provider,
		MaxAge:   int(handshakeTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if crossSite {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	http.SetCookie(w, c)
}

// clearHandshakeCookie expires the cookie; called on every callback outcome.
func clearHandshakeCookie(w http.ResponseWriter, provider string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/signin/provider/" + provider,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
