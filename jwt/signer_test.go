package jwtkit

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestRSASigner_SignAndVerify(t *testing.T) {
	signer, err := NewRSASigner(2048, "kid-1")
	require.NoError(t, err)
	require.Equal(t, "kid-1", signer.KID())

	now := time.Now()
	tok, err := signer.Sign(context.Background(), map[string]any{
		"iss": "https://auth.example",
		"sub": "user-1",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok, func(tk *jwt.Token) (any, error) {
		require.Equal(t, "kid-1", tk.Header["kid"])
		return signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "https://auth.example", claims["iss"])
}

func TestNewRSASigner_RejectsWeakKeys(t *testing.T) {
	_, err := NewRSASigner(1024, "weak")
	require.Error(t, err)
}

func TestNewRSASignerFromPEM_RoundTrip(t *testing.T) {
	orig, err := NewRSASigner(2048, "a")
	require.NoError(t, err)

	pemBytes := orig.PrivateKeyPEM()
	require.NotEmpty(t, pemBytes)

	loaded, err := NewRSASignerFromPEM(pemBytes, "b")
	require.NoError(t, err)
	require.Equal(t, "b", loaded.KID())
	require.Equal(t, orig.PublicKey().N, loaded.PublicKey().N)
}

func TestNewRSASignerFromPEM_Garbage(t *testing.T) {
	_, err := NewRSASignerFromPEM([]byte("not a key"), "x")
	require.Error(t, err)
}

func TestBuildJWKS(t *testing.T) {
	s1, err := NewRSASigner(2048, "k1")
	require.NoError(t, err)
	s2, err := NewRSASigner(2048, "k2")
	require.NoError(t, err)

	doc, err := BuildJWKS(map[string]*rsa.PublicKey{
		"k1": s1.PublicKey(),
		"k2": s2.PublicKey(),
	})
	require.NoError(t, err)

	var parsed struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(doc, &parsed))
	require.Len(t, parsed.Keys, 2)
	require.Equal(t, "k1", parsed.Keys[0]["kid"])
	require.Equal(t, "k2", parsed.Keys[1]["kid"])
	for _, k := range parsed.Keys {
		require.Equal(t, "RSA", k["kty"])
	}
}

func TestServeJWKS(t *testing.T) {
	s, err := NewRSASigner(2048, "k1")
	require.NoError(t, err)
	doc, err := BuildJWKS(map[string]*rsa.PublicKey{"k1": s.PublicKey()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	ServeJWKS(w, r, doc)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), `"keys"`)
}
