package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// AuthServiceConfig holds the runtime configuration of the auth service.
type AuthServiceConfig struct {
	AppName     string `env:"APP_NAME"     envDefault:"auth-service"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`

	HTTPHost string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"9090"`

	MongoURI      string `env:"MONGO_URI"      envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"task_tracker"`

	ConsulAddress string `env:"CONSUL_ADDRESS"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	// ResetStore selects where password reset tokens live. "memory" keeps
	// them in-process, "mongo" persists them across restarts.
	ResetStore string `env:"RESET_STORE" envDefault:"memory"`

	Token TokenConfig `envPrefix:"TOKEN_"`
}

// TokenConfig holds the secrets and lifetimes of the credential subsystem.
// Session token validity is fixed at 24 hours by the session codec and is not
// configurable here.
type TokenConfig struct {
	Issuer        string `env:"ISSUER"   envDefault:"task-tracker"`
	Audience      string `env:"AUDIENCE" envDefault:"task-tracker"`
	SessionSecret string `env:"SESSION_SECRET"`

	ResetTokenTTL      time.Duration `env:"RESET_TTL"            envDefault:"15m"`
	ResetSweepInterval time.Duration `env:"RESET_SWEEP_INTERVAL" envDefault:"1m"`
}

// NewAuthServiceConfig creates an AuthServiceConfig from environment
// variables.
func NewAuthServiceConfig(logger *zerolog.Logger) *AuthServiceConfig {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate auth service configuration")
	}

	return &cfg
}

// validate checks if the configuration is complete.
func (c *AuthServiceConfig) validate() error {
	if c.Token.SessionSecret == "" {
		return fmt.Errorf("missing TOKEN_SESSION_SECRET environment variable")
	}
	if c.Token.ResetTokenTTL <= 0 {
		return fmt.Errorf("TOKEN_RESET_TTL must be positive")
	}
	if c.Token.ResetSweepInterval <= 0 {
		return fmt.Errorf("TOKEN_RESET_SWEEP_INTERVAL must be positive")
	}
	if c.ResetStore != "memory" && c.ResetStore != "mongo" {
		return fmt.Errorf("RESET_STORE must be either memory or mongo, got %q", c.ResetStore)
	}

	return nil
}
