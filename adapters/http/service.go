package authhttp

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hk-meko/hasura-auth/core"
	"github.com/hk-meko/hasura-auth/handshake"
	jwtkit "github.com/hk-meko/hasura-auth/jwt"
	oauthkit "github.com/hk-meko/hasura-auth/oauth"
	"github.com/hk-meko/hasura-auth/providers"
	memorystore "github.com/hk-meko/hasura-auth/storage/memory"
	redisstore "github.com/hk-meko/hasura-auth/storage/redis"
)

const handshakeTTL = 15 * time.Minute

// Service wraps core.Service with net/http mounting helpers for the
// provider sign-in flow.
type Service struct {
	svc      *core.Service
	opts     core.Options
	registry *providers.Registry
	store    handshake.Store

	// Seams for tests and custom deployments; default to the real thing.
	users     core.UserStore
	tokens    core.TokenIssuer
	engineFor func(provider string) oauthkit.Engine
}

// NewService constructs a core.Service and wraps it for net/http mounting.
// Defaults to the in-memory handshake store for dev/single-instance use.
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		svc:       coreSvc,
		opts:      coreSvc.Options(),
		registry:  providers.NewRegistry(cfg.Providers),
		store:     memorystore.NewSessions(handshakeTTL),
		users:     coreSvc,
		tokens:    coreSvc,
		engineFor: oauthkit.ForProvider,
	}, nil
}

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	s.svc = s.svc.WithPostgres(pg)
	return s
}

func (s *Service) WithRedis(rd *redis.Client) *Service {
	if rd != nil {
		s.store = redisstore.NewSessions(rd, handshakeTTL)
	}
	return s
}

// WithSessionStore swaps the handshake store (e.g. the Postgres-backed one).
func (s *Service) WithSessionStore(store handshake.Store) *Service {
	if store != nil {
		s.store = store
	}
	return s
}

func (s *Service) WithUserStore(us core.UserStore) *Service {
	if us != nil {
		s.users = us
	}
	return s
}

func (s *Service) WithTokenIssuer(ti core.TokenIssuer) *Service {
	if ti != nil {
		s.tokens = ti
	}
	return s
}

// WithEngineSelector overrides protocol-engine selection per provider.
func (s *Service) WithEngineSelector(fn func(provider string) oauthkit.Engine) *Service {
	if fn != nil {
		s.engineFor = fn
	}
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

// Handler serves the sign-in flow plus the token and JWKS endpoints. Mount
// it at the host mux root; the paths are fixed.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /signin/provider/{provider}", http.HandlerFunc(s.handleSigninProviderGET))
	mux.Handle("GET /signin/provider/{provider}/callback", http.HandlerFunc(s.handleProviderCallback))
	mux.Handle("POST /signin/provider/{provider}/callback", http.HandlerFunc(s.handleProviderCallback))
	mux.Handle("POST /token", http.HandlerFunc(s.handleTokenPOST))
	mux.Handle("GET /.well-known/jwks.json", http.HandlerFunc(s.handleJWKSGET))
	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	return mux
}

func (s *Service) handleJWKSGET(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.JWKS()
	if err != nil {
		serverErr(w, "jwks_unavailable")
		return
	}
	jwtkit.ServeJWKS(w, r, doc)
}
