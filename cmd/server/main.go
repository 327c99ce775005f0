package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/skillgate/internal/api"
	"github.com/org/skillgate/internal/crypto"
	"github.com/org/skillgate/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr     string  `yaml:"listen_addr"`
	TLSCertFile    string  `yaml:"tls_cert"`
	TLSKeyFile     string  `yaml:"tls_key"`
	DBUrl          string  `yaml:"db_url"`
	MigrationsDir  string  `yaml:"migrations_dir"`
	SigningKeyFile string  `yaml:"signing_key_file"`
	OperatorToken  string  `yaml:"operator_token"`
	TokenTTL       string  `yaml:"token_ttl"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	RateBurst      int     `yaml:"rate_burst"`
	CallTimeout    string  `yaml:"call_timeout"`
	CacheTTL       string  `yaml:"cache_ttl"`
	LogLevel       string  `yaml:"log_level"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("SKILLGATE_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:     ":8420",
		MigrationsDir:  "migrations",
		SigningKeyFile: "signing_key.pem",
		RatePerSec:     10,
		RateBurst:      20,
		LogLevel:       "info",
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("SKILLGATE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("SKILLGATE_OPERATOR_TOKEN"); v != "" {
		cfg.OperatorToken = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Storage: Postgres when configured, in-memory dev mode otherwise.
	var store storage.Backend
	if cfg.DBUrl != "" {
		pg, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
		store = pg
	} else {
		log.Warn().Msg("no db_url configured, using in-memory storage (state is lost on restart)")
		store = storage.NewMemoryBackend()
	}
	defer store.Close()

	// Signing key: load if present, generate and persist on first boot.
	signingKey, err := crypto.LoadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Str("file", cfg.SigningKeyFile).Msg("failed to load signing key")
		}
		_, signingKey, err = crypto.GenerateSigningKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate signing key")
		}
		if err := crypto.SaveSigningKey(signingKey, cfg.SigningKeyFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.SigningKeyFile).Msg("failed to persist signing key")
		}
		log.Info().Str("file", cfg.SigningKeyFile).Msg("generated new signing key")
	}

	if cfg.OperatorToken == "" {
		log.Warn().Msg("no operator token configured, administrative endpoints are disabled")
	}

	srv, err := api.NewServer(store, signingKey, api.Config{
		ListenAddr:    cfg.ListenAddr,
		TLSCertFile:   cfg.TLSCertFile,
		TLSKeyFile:    cfg.TLSKeyFile,
		OperatorToken: cfg.OperatorToken,
		TokenTTL:      parseDuration(cfg.TokenTTL, 24*time.Hour),
		RatePerSec:    cfg.RatePerSec,
		RateBurst:     cfg.RateBurst,
		CallTimeout:   parseDuration(cfg.CallTimeout, 10*time.Second),
		CacheTTL:      parseDuration(cfg.CacheTTL, 0),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warn().Str("value", s).Msg("invalid duration in config, using default")
		return def
	}
	return d
}
