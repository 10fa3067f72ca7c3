package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetBaseURL() string
	GetCallbackURL() string
	GetLandingURL() string
	GetMetricsPort() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Session
}

// Overrides are command line values that take precedence over the environment.
type Overrides struct {
	Port     string
	Env      string
	LogLevel string
}

// Load reads the configuration from the process environment.
func Load(o Overrides) (Config, error) {
	return load(env.Options{}, o)
}

// LoadFromMap reads the configuration from environment instead of the process environment.
func LoadFromMap(environment map[string]string, o Overrides) (Config, error) {
	return load(env.Options{Environment: environment}, o)
}

func load(opts env.Options, o Overrides) (Config, error) {
	var cfg mainConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("[config Load] parse env: %w", err)
	}

	if o.Port != "" {
		cfg.Port = o.Port
	}
	if o.Env != "" {
		cfg.Env = o.Env
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("[config Load] %w", err)
	}
	return cfg, nil
}
