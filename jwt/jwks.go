package jwtkit

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// BuildJWKS renders the public keys as a deterministic, kid-sorted JWK set.
func BuildJWKS(pubs map[string]*rsa.PublicKey) (json.RawMessage, error) {
	set := jwk.NewSet()
	kids := make([]string, 0, len(pubs))
	for kid := range pubs {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	for _, kid := range kids {
		key, err := jwk.FromRaw(pubs[kid])
		if err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	return json.Marshal(set)
}

// ServeJWKS writes a JWKS document with long-lived caching headers.
func ServeJWKS(w http.ResponseWriter, _ *http.Request, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(doc)
}
