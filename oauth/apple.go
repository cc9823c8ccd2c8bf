package oauthkit

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/hk-meko/hasura-auth/providers"
)

// appleClientSecret mints the ES256 client-secret JWT Sign in with Apple
// requires instead of a static secret. Apple allows up to six months of
// validity; one hour is plenty since we mint per handshake.
func appleClientSecret(cfg providers.Config) (string, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("apple: invalid private key: %w", err)
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": cfg.TeamID,
		"sub": cfg.ClientID,
		"aud": "https://appleid.apple.com",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = cfg.KeyID
	return tok.SignedString(key)
}
