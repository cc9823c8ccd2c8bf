package oauthkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/hk-meko/hasura-auth/providers"
)

// oauth2Provider describes a provider that speaks plain OAuth2 with a
// userinfo API instead of OIDC discovery.
type oauth2Provider struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
}

var oauth2Providers = map[string]oauth2Provider{
	providers.GitHub: {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		userInfoURL: "https://api.github.com/user",
	},
	providers.Discord: {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://discord.com/api/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		},
		userInfoURL: "https://discord.com/api/users/@me",
	},
	providers.Facebook: {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.facebook.com/v12.0/dialog/oauth",
			TokenURL: "https://graph.facebook.com/v12.0/oauth/access_token",
		},
		userInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
	},
}

// OAuth2Engine drives the non-OIDC providers via golang.org/x/oauth2 plus a
// userinfo fetch.
type OAuth2Engine struct {
	httpClient *http.Client
}

func NewOAuth2Engine(client *http.Client) *OAuth2Engine {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth2Engine{httpClient: client}
}

func (e *OAuth2Engine) BeginAuthorization(ctx context.Context, cfg providers.Config, req BeginRequest) (string, error) {
	oc, err := e.config(cfg, req.Provider, req.RedirectURI)
	if err != nil {
		return "", err
	}
	var opts []oauth2.AuthCodeOption
	for k, v := range req.ExtraParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return oc.AuthCodeURL(req.State, opts...), nil
}

func (e *OAuth2Engine) CompleteAuthorization(ctx context.Context, cfg providers.Config, req CallbackRequest) (Result, error) {
	oc, err := e.config(cfg, req.Provider, req.RedirectURI)
	if err != nil {
		return Result{}, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	tok, err := oc.Exchange(ctx, req.Code)
	if err != nil {
		return Result{}, fmt.Errorf("token exchange failed for %s: %w", req.Provider, err)
	}

	profile, err := e.fetchJSON(ctx, oauth2Providers[req.Provider].userInfoURL, tok.AccessToken)
	if err != nil {
		return Result{}, err
	}
	// GitHub hides the email on /user when it is private; the scoped
	// /user/emails endpoint still exposes the primary address.
	if req.Provider == providers.GitHub {
		if s, _ := profile["email"].(string); s == "" {
			if email := e.githubPrimaryEmail(ctx, tok.AccessToken); email != "" {
				profile["email"] = email
			}
		}
	}
	return Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Profile:      profile,
	}, nil
}

func (e *OAuth2Engine) config(cfg providers.Config, provider, redirectURI string) (*oauth2.Config, error) {
	p, ok := oauth2Providers[provider]
	if !ok {
		return nil, fmt.Errorf("no OAuth2 endpoints known for provider %s", provider)
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     p.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       cfg.Scopes,
	}, nil
}

func (e *OAuth2Engine) fetchJSON(ctx context.Context, url, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned %d", resp.StatusCode)
	}
	out := map[string]any{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("userinfo decode failed: %w", err)
	}
	return out, nil
}

func (e *OAuth2Engine) githubPrimaryEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user/emails", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}
