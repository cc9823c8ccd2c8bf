package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_Google(t *testing.T) {
	p, err := Normalize(Google, map[string]any{
		"sub":     "108177",
		"email":   "jane@example.com",
		"name":    "Jane Doe",
		"picture": "https://lh3.example/p.jpg",
		"locale":  "fr",
	})
	require.NoError(t, err)
	require.Equal(t, "108177", p.ProviderUserID)
	require.Equal(t, "jane@example.com", p.Email)
	require.Equal(t, "Jane Doe", p.DisplayName)
	require.Equal(t, "https://lh3.example/p.jpg", p.AvatarURL)
	require.Equal(t, "fr", p.Locale)
}

func TestNormalize_GitHubNumericID(t *testing.T) {
	// encoding/json delivers the id as float64.
	p, err := Normalize(GitHub, map[string]any{
		"id":         float64(583231),
		"login":      "octocat",
		"avatar_url": "https://avatars.example/583231",
	})
	require.NoError(t, err)
	require.Equal(t, "583231", p.ProviderUserID)
	require.Equal(t, "octocat", p.DisplayName)
	require.Equal(t, "https://avatars.example/583231", p.AvatarURL)
}

func TestNormalize_GitHubPrefersNameOverLogin(t *testing.T) {
	p, err := Normalize(GitHub, map[string]any{
		"id":    float64(1),
		"login": "octocat",
		"name":  "The Octocat",
	})
	require.NoError(t, err)
	require.Equal(t, "The Octocat", p.DisplayName)
}

func TestNormalize_AzureADFallsBackToPreferredUsername(t *testing.T) {
	p, err := Normalize(AzureAD, map[string]any{
		"sub":                "abc",
		"preferred_username": "jane@contoso.com",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@contoso.com", p.Email)
}

func TestNormalize_DiscordGlobalName(t *testing.T) {
	p, err := Normalize(Discord, map[string]any{
		"id":          "80351110224678912",
		"username":    "nelly",
		"global_name": "Nelly",
		"email":       "nelly@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "80351110224678912", p.ProviderUserID)
	require.Equal(t, "Nelly", p.DisplayName)
}

func TestNormalize_MissingEmailIsTolerated(t *testing.T) {
	p, err := Normalize(Apple, map[string]any{"sub": "001234.abcdef"})
	require.NoError(t, err)
	require.Equal(t, "001234.abcdef", p.ProviderUserID)
	require.Empty(t, p.Email)
}

func TestNormalize_MissingIDFails(t *testing.T) {
	_, err := Normalize(Google, map[string]any{"email": "x@example.com"})
	require.Error(t, err)

	_, err = Normalize(Google, nil)
	require.Error(t, err)
}

func TestNormalize_UnknownProviderUsesGenericClaims(t *testing.T) {
	p, err := Normalize("acme", map[string]any{
		"sub":   "u-1",
		"email": "u@acme.test",
		"name":  "U One",
	})
	require.NoError(t, err)
	require.Equal(t, "u-1", p.ProviderUserID)
	require.Equal(t, "u@acme.test", p.Email)
}

func TestNormalize_LowercasesEmail(t *testing.T) {
	p, err := Normalize(Google, map[string]any{
		"sub":   "1",
		"email": " Jane@Example.COM ",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", p.Email)
}

func TestNormalize_KeepsRawPayload(t *testing.T) {
	raw := map[string]any{"sub": "1", "custom": "field"}
	p, err := Normalize(Google, raw)
	require.NoError(t, err)
	require.Equal(t, "field", p.Raw["custom"])
}
