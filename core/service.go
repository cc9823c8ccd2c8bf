package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	jwtkit "github.com/hk-meko/hasura-auth/jwt"
)

// Keyset holds the active signer and the public keys exposed via JWKS.
type Keyset struct {
	Active     jwtkit.Signer
	PublicKeys map[string]*rsa.PublicKey // kid -> pub
}

// Service owns the user store (Postgres) and the application's own token
// minting. The HTTP adapters consume it through the UserStore and
// TokenIssuer interfaces so tests can swap it out.
type Service struct {
	opts Options
	keys Keyset
	pg   *pgxpool.Pool
}

func NewService(opts Options, keys Keyset) *Service {
	return &Service{opts: opts, keys: keys}
}

// NewFromConfig validates and defaults a Config into a Service.
func NewFromConfig(cfg Config) (*Service, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("hasura-auth: Issuer is required")
	}
	signer := cfg.Keys
	if signer == nil {
		var err error
		signer, err = jwtkit.NewRSASigner(2048, "dev-"+randB64(6))
		if err != nil {
			return nil, fmt.Errorf("hasura-auth: generate dev key: %w", err)
		}
	}
	keys := Keyset{Active: signer, PublicKeys: map[string]*rsa.PublicKey{signer.KID(): signer.PublicKey()}}

	audiences := cfg.IssuedAudiences
	if len(audiences) == 0 {
		audiences = []string{cfg.Issuer}
	}
	accessTTL := cfg.AccessTokenDuration
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenDuration
	if refreshTTL == 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	defaultRole := cfg.DefaultRole
	if defaultRole == "" {
		defaultRole = "user"
	}
	allowedRoles := cfg.AllowedRoles
	if len(allowedRoles) == 0 {
		allowedRoles = []string{defaultRole}
	}
	locale := cfg.DefaultLocale
	if locale == "" {
		locale = "en"
	}
	allowed := cfg.AllowedRedirectURLs
	if cfg.ClientURL != "" && len(allowed) == 0 {
		allowed = []string{cfg.ClientURL}
	}

	opts := Options{
		Issuer:                cfg.Issuer,
		IssuedAudiences:       audiences,
		AccessTokenDuration:   accessTTL,
		RefreshTokenDuration:  refreshTTL,
		ServerURL:             cfg.ServerURL,
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
		ClientURL:             cfg.ClientURL,
		AllowedRedirectURLs:   allowed,
		DefaultRole:           defaultRole,
		AllowedRoles:          allowedRoles,
		DefaultLocale:         locale,
	}
	return NewService(opts, keys), nil
}

// Options exposes the immutable configuration.
func (s *Service) Options() Options { return s.opts }

// WithPostgres attaches a pgx pool to the service.
func (s *Service) WithPostgres(pool *pgxpool.Pool) *Service { s.pg = pool; return s }

// Postgres returns the attached pgx pool (may be nil).
func (s *Service) Postgres() *pgxpool.Pool { return s.pg }

// JWKS returns the public keys as a JWKS document.
func (s *Service) JWKS() (json.RawMessage, error) {
	return jwtkit.BuildJWKS(s.keys.PublicKeys)
}

// IssueAccessToken signs a short-lived access token for the given user.
// Extra claims are merged into the token body.
func (s *Service) IssueAccessToken(ctx context.Context, userID string, extra map[string]any) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(s.opts.AccessTokenDuration)
	claims := map[string]any{
		"iss": s.opts.Issuer,
		"sub": userID,
		"aud": s.opts.IssuedAudiences,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if s.pg != nil {
		if u, uErr := s.getUserByID(ctx, userID); uErr == nil && u != nil {
			if u.Email != nil {
				claims["email"] = *u.Email
			}
			claims["role"] = u.DefaultRole
			claims["locale"] = u.Locale
		}
	}
	for k, v := range extra {
		claims[k] = v
	}
	token, err = s.keys.Active.Sign(ctx, claims)
	return token, expiresAt, err
}

// helpers
func randB64(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
