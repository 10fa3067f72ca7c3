package config

import (
	"strings"
)

const (
	CallbackPath = "/auth/callback"
	LandingPath  = "/landing"
)

type EnvVars struct {
	Port        string `env:"PORT"           envDefault:"8080"`
	AppName     string `env:"APP_NAME"       envDefault:"Go Auth Client"`
	Env         string `env:"ENV"            envDefault:"DEV"`
	BaseURL     string `env:"APP_BASE_URL"   envDefault:"http://localhost:8080" validate:"required,url"`
	MetricsPort string `env:"METRICS_PORT"   envDefault:"9090"`
	LogLevel    string `env:"AUTH_LOG_LEVEL" envDefault:"info"                  validate:"oneof=debug info warn error"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return listenAddr(e.Port)
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) IsDev() bool {
	return strings.EqualFold(e.Env, "DEV")
}

// GetBaseURL returns the public URL of this application (e.g., "https://app.example.com")
// This is used to build the callback and landing URLs registered with the provider
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetCallbackURL() string {
	return e.GetBaseURL() + CallbackPath
}

func (e EnvVars) GetLandingURL() string {
	return e.GetBaseURL() + LandingPath
}

func (e EnvVars) GetMetricsPort() string {
	return listenAddr(e.MetricsPort)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func listenAddr(port string) string {
	if port == "" || strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
