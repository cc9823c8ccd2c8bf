package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	authhttp "github.com/hk-meko/hasura-auth/adapters/http"
	"github.com/hk-meko/hasura-auth/core"
	jwtkit "github.com/hk-meko/hasura-auth/jwt"
	pgmigrations "github.com/hk-meko/hasura-auth/migrations/postgres"
	"github.com/hk-meko/hasura-auth/providers"
	postgresstore "github.com/hk-meko/hasura-auth/storage/postgres"
)

type config struct {
	ListenAddr     string
	Issuer         string
	ServerURL      string
	ClientURL      string
	DBURL          string
	RedisURL       string
	MigrateOnStart bool
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	switch cmd {
	case "serve":
		if err := runServe(cfg); err != nil {
			fatal(err)
		}
	case "migrate":
		if err := runMigrate(cfg); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown command %q (supported: serve, migrate)", cmd))
	}
}

func loadConfig() (*config, error) {
	c := &config{
		ListenAddr:     envOr("AUTH_LISTEN_ADDR", ":4000"),
		Issuer:         strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_ISSUER")), "/"),
		ServerURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_SERVER_URL")), "/"),
		ClientURL:      strings.TrimSpace(os.Getenv("AUTH_CLIENT_URL")),
		DBURL:          firstEnv("DB_URL", "DATABASE_URL"),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		MigrateOnStart: envBool("AUTH_MIGRATE_ON_START", true),
	}
	if c.Issuer == "" {
		return nil, fmt.Errorf("AUTH_ISSUER is required (e.g. http://localhost:4000)")
	}
	if c.DBURL == "" {
		return nil, fmt.Errorf("DB_URL (or DATABASE_URL) is required")
	}
	return c, nil
}

func runServe(cfg *config) error {
	ctx := context.Background()

	pg, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.MigrateOnStart {
		if err := pgmigrations.Run(ctx, pg); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var keys *jwtkit.RSASigner
	if pem := os.Getenv("AUTH_JWT_PRIVATE_KEY"); strings.TrimSpace(pem) != "" {
		keys, err = jwtkit.NewRSASignerFromPEM([]byte(pem), envOr("AUTH_JWT_KEY_ID", "primary"))
		if err != nil {
			return fmt.Errorf("load jwt key: %w", err)
		}
	}

	svc, err := authhttp.NewService(core.Config{
		Issuer:                cfg.Issuer,
		IssuedAudiences:       parseCSVEnv("AUTH_ISSUED_AUDIENCES", nil),
		AccessTokenDuration:   envDuration("AUTH_ACCESS_TOKEN_EXPIRES_IN", 0),
		RefreshTokenDuration:  envDuration("AUTH_REFRESH_TOKEN_EXPIRES_IN", 0),
		ServerURL:             cfg.ServerURL,
		TrustForwardedHeaders: envBool("AUTH_TRUST_FORWARDED_HEADERS", false),
		ClientURL:             cfg.ClientURL,
		AllowedRedirectURLs:   parseCSVEnv("AUTH_ALLOWED_REDIRECT_URLS", nil),
		DefaultRole:           envOr("AUTH_USER_DEFAULT_ROLE", "user"),
		AllowedRoles:          parseCSVEnv("AUTH_USER_DEFAULT_ALLOWED_ROLES", nil),
		DefaultLocale:         envOr("AUTH_LOCALE_DEFAULT", "en"),
		Keys:                  keys,
		Providers:             providersFromEnv(),
	})
	if err != nil {
		return err
	}
	svc.WithPostgres(pg)

	// Handshake store: redis when REDIS_URL is set, postgres on request,
	// in-memory otherwise.
	switch {
	case cfg.RedisURL != "":
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(ropts)
		defer rdb.Close()
		svc.WithRedis(rdb)
	case envOr("AUTH_HANDSHAKE_STORE", "") == "postgres":
		sqldb, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return fmt.Errorf("open sql db: %w", err)
		}
		defer sqldb.Close()
		svc.WithSessionStore(postgresstore.NewSessions(sqldb, 0))
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("[hasura-auth] listening on %s", cfg.ListenAddr)
	return server.ListenAndServe()
}

func runMigrate(cfg *config) error {
	ctx := context.Background()
	pg, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	return pgmigrations.Run(ctx, pg)
}

// providersFromEnv reads AUTH_PROVIDER_<NAME>_* variables for every provider
// slug the registry knows about. A provider is enabled with
// AUTH_PROVIDER_<NAME>_ENABLED=true.
func providersFromEnv() map[string]providers.Config {
	out := map[string]providers.Config{}
	for _, name := range []string{
		providers.Google, providers.Apple, providers.AzureAD,
		providers.GitLab, providers.GitHub, providers.Discord, providers.Facebook,
	} {
		prefix := "AUTH_PROVIDER_" + strings.ToUpper(name) + "_"
		if !envBool(prefix+"ENABLED", false) {
			continue
		}
		out[name] = providers.Config{
			Enabled:      true,
			ClientID:     strings.TrimSpace(os.Getenv(prefix + "CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv(prefix + "CLIENT_SECRET")),
			Scopes:       parseCSVEnv(prefix+"SCOPES", nil),
			Tenant:       strings.TrimSpace(os.Getenv(prefix + "TENANT")),
			BaseURL:      strings.TrimSpace(os.Getenv(prefix + "BASE_URL")),
			KeyID:        strings.TrimSpace(os.Getenv(prefix + "KEY_ID")),
			TeamID:       strings.TrimSpace(os.Getenv(prefix + "TEAM_ID")),
			PrivateKey:   os.Getenv(prefix + "PRIVATE_KEY"),
		}
	}
	return out
}

func parseCSVEnv(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func fatal(err error) {
	if err == nil {
		os.Exit(0)
	}
	if errors.Is(err, http.ErrServerClosed) {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
