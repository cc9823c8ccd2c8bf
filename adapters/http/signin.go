package authhttp

import (
	"log"
	"net/http"
	"time"

	"github.com/hk-meko/hasura-auth/handshake"
	oauthkit "github.com/hk-meko/hasura-auth/oauth"
	"github.com/hk-meko/hasura-auth/providers"
)

// handleSigninProviderGET initiates the handshake: validate input, resolve
// provider configuration, persist the handshake session, set the session
// cookie and hand off to the protocol engine's authorization redirect. Each
// stage may short-circuit; only an unusable redirect target fails without a
// redirect, because there is nowhere safe to send the browser.
func (s *Service) handleSigninProviderGET(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	redirectTo, err := s.parseRedirectTo(r)
	if err != nil {
		badRequest(w, errInvalidRequest)
		return
	}
	opts := parseSignUpOptions(r.URL.Query(), s.opts)

	// Disabled and unknown providers are deliberately indistinguishable.
	// No session exists yet, so no cookie is issued on these branches.
	cfg, ok := s.registry.Resolve(provider)
	if !ok {
		redirectWithError(w, r, redirectTo, provider, errDisabledEndpoint, "this sign-in method is not enabled")
		return
	}
	if err := providers.Validate(provider, cfg); err != nil {
		log.Printf("[hasura-auth/signin] provider misconfigured: %v", err)
		redirectWithError(w, r, redirectTo, provider, errInvalidConfiguration, "this sign-in method is misconfigured")
		return
	}

	extra := map[string]string{}
	if hook, ok := providers.HookFor(provider); ok {
		extra = hook(cfg)
	}

	state := randB64(24)
	nonce := randB64(16)
	verifier, _, err := oauthkit.GeneratePKCE()
	if err != nil {
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not start the sign-in flow")
		return
	}
	id, err := handshake.NewID()
	if err != nil {
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not start the sign-in flow")
		return
	}

	sess := handshake.Session{
		ID:         id,
		Provider:   provider,
		CreatedAt:  time.Now(),
		RedirectTo: redirectTo,
		Options:    opts,
		State:      state,
		Nonce:      nonce,
		Verifier:   verifier,
	}
	if err := s.store.Create(r.Context(), sess); err != nil {
		log.Printf("[hasura-auth/signin] handshake store create failed: %v", err)
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not start the sign-in flow")
		return
	}

	authURL, err := s.engineFor(provider).BeginAuthorization(r.Context(), cfg, oauthkit.BeginRequest{
		Provider:    provider,
		RedirectURI: s.callbackURI(r, provider),
		State:       state,
		Nonce:       nonce,
		Verifier:    verifier,
		ExtraParams: extra,
	})
	if err != nil {
		_ = s.store.Destroy(r.Context(), id)
		log.Printf("[hasura-auth/signin] begin authorization failed for %s: %v", provider, err)
		redirectWithError(w, r, redirectTo, provider, errInvalidConfiguration, "this sign-in method is misconfigured")
		return
	}

	setHandshakeCookie(w, provider, id, extra["response_mode"] == "form_post")
	http.Redirect(w, r, authURL, http.StatusFound)
}
