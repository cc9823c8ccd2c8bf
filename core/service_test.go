package core

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	jwtkit "github.com/hk-meko/hasura-auth/jwt"
)

func TestNewFromConfig_RequiresIssuer(t *testing.T) {
	_, err := NewFromConfig(Config{})
	require.Error(t, err)
}

func TestNewFromConfig_Defaults(t *testing.T) {
	svc, err := NewFromConfig(Config{
		Issuer:    "https://auth.example",
		ClientURL: "https://app.example",
	})
	require.NoError(t, err)

	opts := svc.Options()
	require.Equal(t, []string{"https://auth.example"}, opts.IssuedAudiences)
	require.Equal(t, 15*time.Minute, opts.AccessTokenDuration)
	require.Equal(t, 30*24*time.Hour, opts.RefreshTokenDuration)
	require.Equal(t, "user", opts.DefaultRole)
	require.Equal(t, []string{"user"}, opts.AllowedRoles)
	require.Equal(t, "en", opts.DefaultLocale)
	require.Equal(t, []string{"https://app.example"}, opts.AllowedRedirectURLs)
}

func TestNewFromConfig_ExplicitValuesWin(t *testing.T) {
	signer, err := jwtkit.NewRSASigner(2048, "prod-kid")
	require.NoError(t, err)

	svc, err := NewFromConfig(Config{
		Issuer:               "https://auth.example",
		IssuedAudiences:      []string{"my-app"},
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
		DefaultRole:          "member",
		AllowedRoles:         []string{"member", "editor"},
		DefaultLocale:        "de",
		AllowedRedirectURLs:  []string{"https://a.example", "https://b.example"},
		Keys:                 signer,
	})
	require.NoError(t, err)

	opts := svc.Options()
	require.Equal(t, []string{"my-app"}, opts.IssuedAudiences)
	require.Equal(t, time.Minute, opts.AccessTokenDuration)
	require.Equal(t, "member", opts.DefaultRole)
	require.Equal(t, []string{"member", "editor"}, opts.AllowedRoles)
	require.Equal(t, "de", opts.DefaultLocale)
	require.Len(t, opts.AllowedRedirectURLs, 2)
}

func TestIssueAccessToken_Claims(t *testing.T) {
	signer, err := jwtkit.NewRSASigner(2048, "test-kid")
	require.NoError(t, err)

	svc, err := NewFromConfig(Config{
		Issuer:              "https://auth.example",
		IssuedAudiences:     []string{"my-app"},
		AccessTokenDuration: time.Hour,
		Keys:                signer,
	})
	require.NoError(t, err)

	tok, expiresAt, err := svc.IssueAccessToken(context.Background(), "user-1", map[string]any{"sid": "session-9"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	parsed, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return signer.PublicKey(), nil },
		jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "https://auth.example", claims["iss"])
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "session-9", claims["sid"])

	aud, err := claims.GetAudience()
	require.NoError(t, err)
	require.Equal(t, jwt.ClaimStrings{"my-app"}, aud)
}

func TestJWKS_ContainsActiveKey(t *testing.T) {
	signer, err := jwtkit.NewRSASigner(2048, "active-kid")
	require.NoError(t, err)

	svc, err := NewFromConfig(Config{Issuer: "https://auth.example", Keys: signer})
	require.NoError(t, err)

	doc, err := svc.JWKS()
	require.NoError(t, err)
	require.Contains(t, string(doc), `"active-kid"`)
}

func TestSessionOps_RequirePostgres(t *testing.T) {
	svc, err := NewFromConfig(Config{Issuer: "https://auth.example"})
	require.NoError(t, err)

	_, _, err = svc.IssueRefreshSession(context.Background(), "user-1", "")
	require.Error(t, err)

	_, _, _, err = svc.ExchangeRefreshToken(context.Background(), "tok", "")
	require.Error(t, err)
}
