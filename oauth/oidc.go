package oauthkit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/zitadel/oidc/v2/pkg/client/rp"
	"github.com/zitadel/oidc/v2/pkg/oidc"
	"golang.org/x/oauth2"

	"github.com/hk-meko/hasura-auth/providers"
)

// OIDCEngine drives providers that support OIDC discovery (google, apple,
// azuread, gitlab). Relying parties are built per request from discovery so a
// provider reconfiguration never needs a process restart.
type OIDCEngine struct{}

func (e *OIDCEngine) BeginAuthorization(ctx context.Context, cfg providers.Config, req BeginRequest) (string, error) {
	rpClient, err := e.rp(ctx, cfg, req.Provider, req.RedirectURI)
	if err != nil {
		return "", err
	}
	opts := []rp.AuthURLOpt{
		rp.AuthURLOpt(rp.WithURLParam("nonce", req.Nonce)),
	}
	// Apple's web flow rejects PKCE parameters.
	if req.Provider != providers.Apple && req.Verifier != "" {
		opts = append(opts, rp.WithCodeChallenge(challengeS256(req.Verifier)))
		opts = append(opts, rp.AuthURLOpt(rp.WithURLParam("code_challenge_method", "S256")))
	}
	for k, v := range req.ExtraParams {
		opts = append(opts, rp.AuthURLOpt(rp.WithURLParam(k, v)))
	}
	return rp.AuthURL(req.State, rpClient, opts...), nil
}

func (e *OIDCEngine) CompleteAuthorization(ctx context.Context, cfg providers.Config, req CallbackRequest) (Result, error) {
	rpClient, err := e.rp(ctx, cfg, req.Provider, req.RedirectURI)
	if err != nil {
		return Result{}, err
	}

	// Exchange the code directly over OAuth2 first; the RP's built-in
	// verifier does not know our per-request nonce.
	var opts []oauth2.AuthCodeOption
	if req.Provider != providers.Apple && req.Verifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", req.Verifier))
	}
	tok, err := rpClient.OAuthConfig().Exchange(ctx, req.Code, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("token exchange failed for %s: %w", req.Provider, err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Result{}, fmt.Errorf("%s: no id_token in token response", req.Provider)
	}

	verifier := rp.NewIDTokenVerifier(
		rpClient.IDTokenVerifier().Issuer(),
		rpClient.IDTokenVerifier().ClientID(),
		rpClient.IDTokenVerifier().KeySet(),
		rp.WithNonce(func(context.Context) string { return req.Nonce }),
	)
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, rawIDToken, verifier)
	if err != nil {
		return Result{}, fmt.Errorf("id_token verification failed for %s: %w", req.Provider, err)
	}

	profile := map[string]any{"sub": claims.GetSubject()}
	if claims.UserInfoEmail.Email != "" {
		profile["email"] = claims.UserInfoEmail.Email
		profile["email_verified"] = bool(claims.UserInfoEmail.EmailVerified)
	}
	if claims.UserInfoProfile.Name != "" {
		profile["name"] = claims.UserInfoProfile.Name
	}
	if claims.UserInfoProfile.Picture != "" {
		profile["picture"] = claims.UserInfoProfile.Picture
	}
	if claims.UserInfoProfile.PreferredUsername != "" {
		profile["preferred_username"] = claims.UserInfoProfile.PreferredUsername
	}
	return Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Profile:      profile,
	}, nil
}

func (e *OIDCEngine) rp(ctx context.Context, cfg providers.Config, provider, redirectURI string) (rp.RelyingParty, error) {
	issuer, err := issuerFor(provider, cfg)
	if err != nil {
		return nil, err
	}
	secret := cfg.ClientSecret
	if provider == providers.Apple {
		// Apple client secrets are short-lived ES256 JWTs minted from the
		// configured signing key.
		secret, err = appleClientSecret(cfg)
		if err != nil {
			return nil, err
		}
	}
	return rp.NewRelyingPartyOIDC(issuer, cfg.ClientID, secret, redirectURI, cfg.Scopes)
}

func issuerFor(provider string, cfg providers.Config) (string, error) {
	switch provider {
	case providers.Google:
		return "https://accounts.google.com", nil
	case providers.Apple:
		return "https://appleid.apple.com", nil
	case providers.AzureAD:
		return "https://login.microsoftonline.com/" + cfg.Tenant + "/v2.0", nil
	case providers.GitLab:
		return strings.TrimRight(cfg.BaseURL, "/"), nil
	}
	return "", fmt.Errorf("no OIDC issuer known for provider %s", provider)
}

// GeneratePKCE returns a verifier and its S256 challenge.
func GeneratePKCE() (verifier string, challenge string, err error) {
	v := make([]byte, 32)
	if _, err = rand.Read(v); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(v)
	return verifier, challengeS256(verifier), nil
}

func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
