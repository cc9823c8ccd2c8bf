package authhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hk-meko/hasura-auth/core"
	oauthkit "github.com/hk-meko/hasura-auth/oauth"
	"github.com/hk-meko/hasura-auth/providers"
	memorystore "github.com/hk-meko/hasura-auth/storage/memory"
)

type fakeEngine struct {
	authURL     string
	beginErr    error
	result      oauthkit.Result
	completeErr error

	lastBegin    oauthkit.BeginRequest
	lastCallback oauthkit.CallbackRequest
}

func (f *fakeEngine) BeginAuthorization(_ context.Context, _ providers.Config, req oauthkit.BeginRequest) (string, error) {
	f.lastBegin = req
	if f.beginErr != nil {
		return "", f.beginErr
	}
	if f.authURL != "" {
		return f.authURL, nil
	}
	return "https://provider.example/authorize?state=" + url.QueryEscape(req.State), nil
}

func (f *fakeEngine) CompleteAuthorization(_ context.Context, _ providers.Config, req oauthkit.CallbackRequest) (oauthkit.Result, error) {
	f.lastCallback = req
	if f.completeErr != nil {
		return oauthkit.Result{}, f.completeErr
	}
	return f.result, nil
}

type fakeUserStore struct {
	links map[string]core.ProviderLink // providerID+"/"+providerUserID
	users map[string]core.User         // email -> user

	updatedTokens bool
	linkedUserID  string
	created       *core.NewUser
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		links: map[string]core.ProviderLink{},
		users: map[string]core.User{},
	}
}

func (f *fakeUserStore) GetProviderLink(_ context.Context, providerID, providerUserID string) (*core.ProviderLink, error) {
	if l, ok := f.links[providerID+"/"+providerUserID]; ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeUserStore) UpdateProviderLinkTokens(_ context.Context, providerID, providerUserID, accessToken, refreshToken string) error {
	l := f.links[providerID+"/"+providerUserID]
	l.AccessToken = accessToken
	l.RefreshToken = refreshToken
	f.links[providerID+"/"+providerUserID] = l
	f.updatedTokens = true
	return nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	if u, ok := f.users[email]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUserStore) LinkProvider(_ context.Context, userID string, link core.ProviderLink) error {
	link.UserID = userID
	f.links[link.ProviderID+"/"+link.ProviderUserID] = link
	f.linkedUserID = userID
	return nil
}

func (f *fakeUserStore) CreateUserWithLink(_ context.Context, u core.NewUser, link core.ProviderLink) (*core.User, error) {
	created := core.User{ID: "new-user-1", Email: u.Email, Locale: u.Locale, DefaultRole: u.DefaultRole}
	if u.Email != nil {
		f.users[*u.Email] = created
	}
	link.UserID = created.ID
	f.links[link.ProviderID+"/"+link.ProviderUserID] = link
	f.created = &u
	return &created, nil
}

type fakeTokenIssuer struct {
	token  string
	err    error
	issued int
	userID string
}

func (f *fakeTokenIssuer) IssueRefreshSession(_ context.Context, userID, _ string) (string, *time.Time, error) {
	f.issued++
	f.userID = userID
	if f.err != nil {
		return "", nil, f.err
	}
	return f.token, nil, nil
}

type testHarness struct {
	svc    *Service
	engine *fakeEngine
	users  *fakeUserStore
	tokens *fakeTokenIssuer
	store  *memorystore.Sessions
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	svc, err := NewService(core.Config{
		Issuer:              "https://auth.example",
		ClientURL:           "https://app.example",
		AllowedRedirectURLs: []string{"https://app.example"},
		AllowedRoles:        []string{"user", "editor"},
		Providers: map[string]providers.Config{
			providers.Google: {Enabled: true, ClientID: "cid", ClientSecret: "sec"},
			providers.GitHub: {Enabled: false, ClientID: "cid", ClientSecret: "sec"},
			providers.Apple:  {Enabled: true, ClientID: "com.example", KeyID: "K", TeamID: "T", PrivateKey: "pem"},
		},
	})
	require.NoError(t, err)

	h := &testHarness{
		svc:    svc,
		engine: &fakeEngine{},
		users:  newFakeUserStore(),
		tokens: &fakeTokenIssuer{token: "refresh-abc"},
		store:  memorystore.NewSessions(time.Minute),
	}
	svc.WithSessionStore(h.store).
		WithUserStore(h.users).
		WithTokenIssuer(h.tokens).
		WithEngineSelector(func(string) oauthkit.Engine { return h.engine })
	return h
}

func (h *testHarness) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.svc.Handler().ServeHTTP(w, r)
	return w
}

func locationQuery(t *testing.T, w *httptest.ResponseRecorder) (base string, q url.Values) {
	t.Helper()
	loc := w.Header().Get("Location")
	require.NotEmpty(t, loc)
	u, err := url.Parse(loc)
	require.NoError(t, err)
	u2 := *u
	u2.RawQuery = ""
	return u2.String(), u.Query()
}

func TestSignin_RedirectsToProvider(t *testing.T) {
	h := newTestHarness(t)

	r := httptest.NewRequest(http.MethodGet, "/signin/provider/google?redirectUrl=https://app.example/finish", nil)
	w := h.do(t, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "https://provider.example/authorize")

	require.Equal(t, "google", h.engine.lastBegin.Provider)
	require.NotEmpty(t, h.engine.lastBegin.State)
	require.NotEmpty(t, h.engine.lastBegin.Nonce)
	require.NotEmpty(t, h.engine.lastBegin.Verifier)
	require.Equal(t, "http://example.com/signin/provider/google/callback", h.engine.lastBegin.RedirectURI)
	require.Equal(t, "offline", h.engine.lastBegin.ExtraParams["access_type"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, cookieName, c.Name)
	require.NotEmpty(t, c.Value)
	require.Equal(t, "/signin/provider/google", c.Path)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)

	sess, ok, err := h.store.Load(r.Context(), c.Value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "google", sess.Provider)
	require.Equal(t, "https://app.example/finish", sess.RedirectTo)
	require.Equal(t, h.engine.lastBegin.State, sess.State)
}

func TestSignin_FormPostProviderGetsCrossSiteCookie(t *testing.T) {
	h := newTestHarness(t)

	r := httptest.NewRequest(http.MethodGet, "/signin/provider/apple", nil)
	w := h.do(t, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "form_post", h.engine.lastBegin.ExtraParams["response_mode"])

	c := w.Result().Cookies()[0]
	require.Equal(t, http.SameSiteNoneMode, c.SameSite)
	require.True(t, c.Secure)
}

func TestSignin_DisabledProviderRedirectsWithoutCookie(t *testing.T) {
	h := newTestHarness(t)

	for _, p := range []string{"github", "unknown"} {
		r := httptest.NewRequest(http.MethodGet, "/signin/provider/"+p, nil)
		w := h.do(t, r)

		require.Equal(t, http.StatusFound, w.Code, p)
		base, q := locationQuery(t, w)
		require.Equal(t, "https://app.example", base)
		require.Equal(t, "disabled-endpoint", q.Get("error"))
		require.Equal(t, p, q.Get("provider"))
		require.NotEmpty(t, q.Get("errorDescription"))
		require.Empty(t, w.Result().Cookies(), p)
	}
}

func TestSignin_MisconfiguredProvider(t *testing.T) {
	h := newTestHarness(t)
	svc, err := NewService(core.Config{
		Issuer:    "https://auth.example",
		ClientURL: "https://app.example",
		Providers: map[string]providers.Config{
			providers.Google: {Enabled: true, ClientID: "cid"}, // secret missing
		},
	})
	require.NoError(t, err)
	h.svc = svc.WithEngineSelector(func(string) oauthkit.Engine { return h.engine })

	w := h.do(t, httptest.NewRequest(http.MethodGet, "/signin/provider/google", nil))

	require.Equal(t, http.StatusFound, w.Code)
	_, q := locationQuery(t, w)
	require.Equal(t, "invalid-oauth-configuration", q.Get("error"))
	require.Empty(t, w.Result().Cookies())
}

func TestSignin_InvalidRedirectURL(t *testing.T) {
	h := newTestHarness(t)

	for _, target := range []string{
		"https://evil.example/phish",
		"javascript:alert(1)",
		"/relative/path",
	} {
		r := httptest.NewRequest(http.MethodGet, "/signin/provider/google?redirectUrl="+url.QueryEscape(target), nil)
		w := h.do(t, r)

		require.Equal(t, http.StatusBadRequest, w.Code, target)
		require.Contains(t, w.Body.String(), `"invalid-request"`)
		require.Empty(t, w.Result().Cookies(), target)
	}
}

func TestSignin_BeginFailureDestroysSession(t *testing.T) {
	h := newTestHarness(t)
	h.engine.beginErr = context.DeadlineExceeded

	w := h.do(t, httptest.NewRequest(http.MethodGet, "/signin/provider/google", nil))

	require.Equal(t, http.StatusFound, w.Code)
	_, q := locationQuery(t, w)
	require.Equal(t, "invalid-oauth-configuration", q.Get("error"))
	require.Empty(t, w.Result().Cookies())
}

func TestSignin_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	h := newTestHarness(t)

	r := httptest.NewRequest(http.MethodGet, "/signin/provider/google", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "attacker.example")
	w := h.do(t, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "http://example.com/signin/provider/google/callback", h.engine.lastBegin.RedirectURI)
}

func TestSignin_ForwardedHeadersHonoredWhenTrusted(t *testing.T) {
	h := newTestHarness(t)
	svc, err := NewService(core.Config{
		Issuer:                "https://auth.example",
		ClientURL:             "https://app.example",
		TrustForwardedHeaders: true,
		Providers: map[string]providers.Config{
			providers.Google: {Enabled: true, ClientID: "cid", ClientSecret: "sec"},
		},
	})
	require.NoError(t, err)
	h.svc = svc.WithEngineSelector(func(string) oauthkit.Engine { return h.engine })

	r := httptest.NewRequest(http.MethodGet, "/signin/provider/google", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "auth.example")
	w := h.do(t, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://auth.example/signin/provider/google/callback", h.engine.lastBegin.RedirectURI)
}

func TestSignin_ServerURLWinsForCallbackURI(t *testing.T) {
	h := newTestHarness(t)
	svc, err := NewService(core.Config{
		Issuer:    "https://auth.example",
		ServerURL: "https://auth.example",
		ClientURL: "https://app.example",
		Providers: map[string]providers.Config{
			providers.Google: {Enabled: true, ClientID: "cid", ClientSecret: "sec"},
		},
	})
	require.NoError(t, err)
	h.svc = svc.WithEngineSelector(func(string) oauthkit.Engine { return h.engine })

	w := h.do(t, httptest.NewRequest(http.MethodGet, "/signin/provider/google", nil))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://auth.example/signin/provider/google/callback", h.engine.lastBegin.RedirectURI)
}
