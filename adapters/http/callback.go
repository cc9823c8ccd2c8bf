package authhttp

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/hk-meko/hasura-auth/core"
	"github.com/hk-meko/hasura-auth/handshake"
	oauthkit "github.com/hk-meko/hasura-auth/oauth"
	"github.com/hk-meko/hasura-auth/providers"
)

// handleProviderCallback consumes a completed handshake. GET for most
// providers; apple and azuread return a cross-site form POST.
//
// The session is destroyed and its cookie cleared before any other work, so
// a handshake can never be replayed whatever happens afterwards. Past this
// point every failure resolves to an error redirect back to the client,
// never an HTTP error page.
func (s *Service) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if err := r.ParseForm(); err != nil {
		badRequest(w, errInvalidRequest)
		return
	}

	cookie, err := r.Cookie(cookieName)
	clearHandshakeCookie(w, provider)
	if err != nil || cookie.Value == "" {
		badRequest(w, errInvalidRequest)
		return
	}
	sess, ok, err := s.store.Load(r.Context(), cookie.Value)
	if err != nil || !ok || sess.Provider != provider {
		// No session means no trusted redirect target to fall back to.
		badRequest(w, errInvalidRequest)
		return
	}
	if err := s.store.Destroy(r.Context(), sess.ID); err != nil {
		log.Printf("[hasura-auth/callback] handshake destroy failed: %v", err)
	}
	redirectTo := sess.RedirectTo

	if state := r.Form.Get("state"); state == "" || state != sess.State {
		redirectWithError(w, r, redirectTo, provider, errInvalidRequest, "state mismatch")
		return
	}

	// The provider cancelled or rejected the authorization: pass its own
	// code and description through.
	if pErr := r.Form.Get("error"); pErr != "" {
		desc := r.Form.Get("error_description")
		if desc == "" {
			desc = pErr
		}
		redirectWithError(w, r, redirectTo, provider, pErr, desc)
		return
	}
	code := r.Form.Get("code")
	if code == "" {
		redirectWithError(w, r, redirectTo, provider, errInvalidRequest, "missing authorization code")
		return
	}

	cfg, ok := s.registry.Resolve(provider)
	if !ok {
		redirectWithError(w, r, redirectTo, provider, errDisabledEndpoint, "this sign-in method is not enabled")
		return
	}

	res, err := s.engineFor(provider).CompleteAuthorization(r.Context(), cfg, oauthkit.CallbackRequest{
		Provider:    provider,
		RedirectURI: s.callbackURI(r, provider),
		Code:        code,
		Nonce:       sess.Nonce,
		Verifier:    sess.Verifier,
	})
	if err != nil {
		log.Printf("[hasura-auth/callback] authorization exchange failed for %s: %v", provider, err)
		redirectWithError(w, r, redirectTo, provider, errInternal, "the sign-in could not be completed")
		return
	}
	if len(res.Profile) == 0 {
		redirectWithError(w, r, redirectTo, provider, errInternal, "the provider returned no profile")
		return
	}

	profile, err := providers.Normalize(provider, res.Profile)
	if err != nil {
		log.Printf("[hasura-auth/callback] profile normalization failed: %v", err)
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not read the provider profile")
		return
	}

	userID, err := s.resolveUser(r.Context(), provider, profile, res, sess.Options)
	if err != nil {
		log.Printf("[hasura-auth/callback] account linking failed for %s: %v", provider, err)
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not link the account")
		return
	}

	refreshToken, _, err := s.tokens.IssueRefreshSession(r.Context(), userID, r.UserAgent())
	if err != nil {
		log.Printf("[hasura-auth/callback] refresh session issue failed: %v", err)
		redirectWithError(w, r, redirectTo, provider, errInternal, "could not create a session")
		return
	}
	redirectWithToken(w, r, redirectTo, refreshToken)
}

// resolveUser reconciles a provider identity with the local user store. The
// identity-link match always wins over the email match so a changed email on
// the provider side never silently relinks to a different local user.
func (s *Service) resolveUser(ctx context.Context, provider string, profile providers.Profile, res oauthkit.Result, opts handshake.Options) (string, error) {
	link, err := s.users.GetProviderLink(ctx, provider, profile.ProviderUserID)
	if err != nil {
		return "", err
	}
	if link != nil {
		if err := s.users.UpdateProviderLinkTokens(ctx, provider, profile.ProviderUserID, res.AccessToken, res.RefreshToken); err != nil {
			return "", err
		}
		return link.UserID, nil
	}

	newLink := core.ProviderLink{
		ProviderID:     provider,
		ProviderUserID: profile.ProviderUserID,
		AccessToken:    res.AccessToken,
		RefreshToken:   res.RefreshToken,
	}
	if profile.Email != "" {
		u, err := s.users.GetUserByEmail(ctx, profile.Email)
		if err != nil {
			return "", err
		}
		if u != nil {
			if err := s.users.LinkProvider(ctx, u.ID, newLink); err != nil {
				return "", err
			}
			return u.ID, nil
		}
	}

	u, err := s.users.CreateUserWithLink(ctx, newUserFrom(profile, opts), newLink)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// newUserFrom combines the canonical profile with the registration options
// captured at initiation. Options win for the fields the caller may set.
func newUserFrom(profile providers.Profile, opts handshake.Options) core.NewUser {
	displayName := opts.DisplayName
	if displayName == "" {
		displayName = profile.DisplayName
	}
	if displayName == "" && profile.Email != "" {
		displayName, _, _ = strings.Cut(profile.Email, "@")
	}
	var email *string
	if profile.Email != "" {
		e := profile.Email
		email = &e
	}
	return core.NewUser{
		Email:        email,
		DisplayName:  displayName,
		AvatarURL:    profile.AvatarURL,
		Locale:       opts.Locale,
		DefaultRole:  opts.DefaultRole,
		AllowedRoles: opts.AllowedRoles,
		Metadata:     opts.Metadata,
	}
}
