package authhttp

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return errors.New("missing_body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Reject trailing garbage.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid_json")
	}
	return nil
}

func randB64(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// callbackURI builds the absolute URL the provider redirects back to. A
// configured ServerURL wins; otherwise it is derived from the request.
// Forwarding headers are client-controlled and only honored when the
// deployment opted in via TrustForwardedHeaders.
func (s *Service) callbackURI(r *http.Request, provider string) string {
	path := "/signin/provider/" + provider + "/callback"
	if base := strings.TrimRight(s.opts.ServerURL, "/"); base != "" {
		return base + path
	}
	var scheme, host string
	if s.opts.TrustForwardedHeaders {
		scheme = r.Header.Get("X-Forwarded-Proto")
		host = r.Header.Get("X-Forwarded-Host")
	}
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + path
}
