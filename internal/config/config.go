package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Prefix de las variables de entorno, p.ej. SMART_EXTRACT_HTTP_PORT
const Prefix = "SMART_EXTRACT"

// Modos del registro de cuentas
const (
	RegistryLocal  = "local"
	RegistryRemote = "remote"
)

// Config contiene la configuración del daemon
type Config struct {
	HTTPHost string `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	DataDir  string `envconfig:"DATA_DIR"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Extracción
	Platform     string        `envconfig:"PLATFORM" default:"instagram"`
	PostDomain   string        `envconfig:"POST_DOMAIN" default:"instagram.com"`
	CommentLimit int           `envconfig:"COMMENT_LIMIT" default:"50"`
	Cooldown     time.Duration `envconfig:"COOLDOWN" default:"1s"`

	// Registro de cuentas
	RegistryMode    string        `envconfig:"REGISTRY_MODE" default:"local"`
	RegistryURL     string        `envconfig:"REGISTRY_URL"`
	RegistryAPIKey  string        `envconfig:"REGISTRY_API_KEY"`
	RegistryTimeout time.Duration `envconfig:"REGISTRY_TIMEOUT" default:"10s"`
	// Las rutas /rpc entregan credenciales: exigen REGISTRY_API_KEY
	ServeRegistry bool `envconfig:"SERVE_REGISTRY" default:"false"`

	// Gateway de la plataforma
	GatewayURL     string        `envconfig:"GATEWAY_URL" default:"http://127.0.0.1:8000"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`

	// Reactivación automática de cuentas rate_limited (0 = deshabilitada)
	ReviveAfter    time.Duration `envconfig:"REVIVE_AFTER" default:"0"`
	ReviveInterval time.Duration `envconfig:"REVIVE_INTERVAL" default:"1m"`

	// Tracing OTLP/HTTP (vacío = deshabilitado)
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
}

// Validate revisa combinaciones inválidas
func (c *Config) Validate() error {
	switch c.RegistryMode {
	case RegistryLocal:
	case RegistryRemote:
		if c.RegistryURL == "" {
			return fmt.Errorf("REGISTRY_URL is required when REGISTRY_MODE=remote")
		}
	default:
		return fmt.Errorf("unsupported REGISTRY_MODE: %s", c.RegistryMode)
	}
	if c.ServeRegistry && c.RegistryAPIKey == "" {
		return fmt.Errorf("REGISTRY_API_KEY is required when SERVE_REGISTRY=true")
	}
	if c.RegistryMode == RegistryRemote && c.RegistryTimeout <= 0 {
		return fmt.Errorf("REGISTRY_TIMEOUT must be positive")
	}

	if c.CommentLimit <= 0 {
		return fmt.Errorf("COMMENT_LIMIT must be positive, got %d", c.CommentLimit)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("COOLDOWN must not be negative")
	}
	if c.ReviveAfter > 0 && c.ReviveInterval <= 0 {
		return fmt.Errorf("REVIVE_INTERVAL must be positive when REVIVE_AFTER is set")
	}
	return nil
}

// New lee la configuración desde variables SMART_EXTRACT_*
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.HTTPHost).
		Int("port", cfg.HTTPPort).
		Str("data_dir", cfg.DataDir).
		Str("platform", cfg.Platform).
		Str("post_domain", cfg.PostDomain).
		Int("comment_limit", cfg.CommentLimit).
		Dur("cooldown", cfg.Cooldown).
		Str("registry_mode", cfg.RegistryMode).
		Str("registry_url", cfg.RegistryURL).
		Bool("registry_api_key_present", cfg.RegistryAPIKey != "").
		Bool("serve_registry", cfg.ServeRegistry).
		Str("gateway_url", cfg.GatewayURL).
		Dur("revive_after", cfg.ReviveAfter).
		Bool("tracing", cfg.OTLPEndpoint != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// DefaultDataDir retorna ~/.local/share/smart-extract
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "smart-extract-data"
	}
	return filepath.Join(home, ".local", "share", "smart-extract")
}
