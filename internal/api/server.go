package api

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/skillgate/internal/audit"
	"github.com/org/skillgate/internal/auth"
	"github.com/org/skillgate/internal/crypto"
	"github.com/org/skillgate/internal/gateway"
	"github.com/org/skillgate/internal/ratelimit"
	"github.com/org/skillgate/internal/registry"
	"github.com/org/skillgate/internal/skills"
	"github.com/org/skillgate/internal/storage"
	"github.com/org/skillgate/pkg/models"
	"github.com/rs/zerolog/log"
)

// Version is reported by the discovery endpoint.
const Version = "1.0.0"

// Config holds server configuration.
type Config struct {
	ListenAddr    string
	TLSCertFile   string
	TLSKeyFile    string
	OperatorToken string
	TokenTTL      time.Duration
	RatePerSec    float64
	RateBurst     int
	CallTimeout   time.Duration
	CacheTTL      time.Duration
}

// Server is the API server.
type Server struct {
	store    storage.Backend
	registry *registry.Registry
	tokens   *auth.TokenService
	limiter  *ratelimit.Limiter
	auditor  *audit.Log
	gateway  *gateway.Gateway
	cfg      Config
	httpSrv  *http.Server
}

// NewServer creates a fully wired Server. The signing key authenticates
// issued access tokens and seeds the audit redaction key.
func NewServer(store storage.Backend, signingKey ed25519.PrivateKey, cfg Config) (*Server, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}

	redactionKey, err := crypto.DeriveRedactionKey(signingKey, "audit-subject-redaction-v1")
	if err != nil {
		return nil, err
	}
	auditor := audit.NewLog(store, redactionKey)
	tokenSvc := auth.NewTokenService(store, auditor, signingKey)
	limiter := ratelimit.NewLimiter(cfg.RatePerSec, cfg.RateBurst, 10*time.Minute)

	reg, warnings := registry.New(skills.Builtin)
	for _, w := range warnings {
		log.Warn().Str("skill", w.SkillName).Str("reason", w.Reason).Msg("skill excluded from catalog")
	}

	gw := gateway.New(reg, tokenSvc, limiter, auditor, gateway.Config{
		CallTimeout: cfg.CallTimeout,
		CacheTTL:    cfg.CacheTTL,
	})

	s := &Server{
		store:    store,
		registry: reg,
		tokens:   tokenSvc,
		limiter:  limiter,
		auditor:  auditor,
		gateway:  gw,
		cfg:      cfg,
	}
	s.updateCatalogGauges()
	return s, nil
}

func (s *Server) updateCatalogGauges() {
	catalog := s.registry.Snapshot()
	free := len(catalog.List(models.TierFree))
	premium := len(catalog.List(models.TierPremium))
	catalogSkillsTotal.WithLabelValues(string(models.TierFree)).Set(float64(free))
	catalogSkillsTotal.WithLabelValues(string(models.TierPremium)).Set(float64(premium))
}

func (s *Server) updateTokenGauge(ctx context.Context) {
	n, err := s.store.CountActiveTokens(ctx)
	if err != nil {
		return
	}
	activeTokensTotal.Set(float64(n))
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(requestLogMiddleware)

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes: skill protocol + discovery. Credentials ride along in
	// the Authorization header and are enforced per-skill by the gateway.
	r.Group(func(r chi.Router) {
		r.Post("/rpc", s.RPCHandler)
		r.Get("/v1/sys/health", s.HealthHandler)
		r.Get("/v1/sys/info", s.InfoHandler)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(operatorMiddleware(s.cfg.OperatorToken))

		r.Post("/v1/sys/reload", s.ReloadHandler)
		r.Get("/v1/sys/audit-log", s.AuditLogHandler)
		r.Get("/v1/sys/audit/verify", s.AuditVerifyHandler)

		r.Post("/v1/auth/token/issue", s.TokenIssueHandler)
		r.Post("/v1/auth/token/revoke", s.TokenRevokeHandler)
		r.Get("/v1/auth/token", s.TokenListHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		s.httpSrv.TLSConfig = tlsCfg
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server and releases the rate limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
