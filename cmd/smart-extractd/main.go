package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/elsanchez/smart-extract/internal/config"
	"github.com/elsanchez/smart-extract/internal/daemon"
	"github.com/elsanchez/smart-extract/internal/extractor"
	"github.com/elsanchez/smart-extract/internal/logger"
	"github.com/elsanchez/smart-extract/internal/platform/gateway"
	"github.com/elsanchez/smart-extract/internal/registry"
	"github.com/elsanchez/smart-extract/internal/repository"
	"github.com/elsanchez/smart-extract/internal/repository/sqlite"
	"github.com/elsanchez/smart-extract/internal/session"
	"github.com/elsanchez/smart-extract/internal/telemetry"
)

const (
	version     = "0.1.0"
	serviceName = "smart-extractd"
)

func main() {
	log := logger.New(serviceName)
	zlog.Logger = log

	log.Info().Str("version", version).Msg("smart-extractd starting...")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	// Inicializar base de datos
	db, err := sqlite.NewDatabase(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	log.Info().Str("data_dir", cfg.DataDir).Msg("✓ Database initialized")

	// Registro de cuentas: local (sqlite) o remoto (otro smart-extractd)
	// En modo remoto el pool no vive aquí: sin /api/accounts ni reviver
	var (
		store    registry.Store
		accounts repository.AccountRepository
	)
	switch cfg.RegistryMode {
	case config.RegistryRemote:
		store = registry.NewRemote(cfg.RegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
		log.Info().Str("url", cfg.RegistryURL).Msg("✓ Using remote account registry")
	default:
		store = registry.NewLocal(db.AccountRepo, cfg.Platform)
		accounts = db.AccountRepo
		log.Info().Msg("✓ Using local account registry")
	}
	reg := registry.NewClient(store, log)

	factory := gateway.NewFactory(gateway.Options{
		BaseURL: cfg.GatewayURL,
		Timeout: cfg.GatewayTimeout,
	})
	sessions := session.NewManager(factory, reg, log)

	ext := extractor.New(reg, sessions, extractor.Options{
		Domain:       cfg.PostDomain,
		CommentLimit: cfg.CommentLimit,
		Cooldown:     cfg.Cooldown,
	}, log, extractor.WithHistory(db.ExtractionRepo))

	// Solo se sirve el registro propio; en modo remoto no hay nada que exponer
	serveRegistry := cfg.ServeRegistry && cfg.RegistryMode == config.RegistryLocal
	handlers := daemon.NewHandlers(ext, accounts, db.ExtractionRepo, store, log).WithRegistryKey(cfg.RegistryAPIKey)
	server := daemon.NewServer(fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort), daemon.NewRouter(handlers, serveRegistry, log), log)

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	reviveAfter := cfg.ReviveAfter
	if accounts == nil {
		reviveAfter = 0
	}
	reviver := daemon.NewReviver(db.AccountRepo, reviveAfter, cfg.ReviveInterval, log)
	reviver.Start()

	log.Info().Str("addr", server.Addr()).Bool("serve_registry", serveRegistry).Msg("smart-extractd is ready")

	<-ctx.Done()
	log.Info().Msg("Shutting down gracefully...")

	reviver.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
