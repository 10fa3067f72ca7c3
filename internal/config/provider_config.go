package config

import (
	"strings"
	"time"
)

type ProviderConfig interface {
	GetProviderDomain() string
	GetClientID() string
	GetClientSecret() string
	GetOIDCIssuer() string
	GetScopes() []string
	GetHTTPTimeout() time.Duration
}

// Provider is the identity provider this application signs users in with.
type Provider struct {
	Domain       string        `env:"AUTH_PROVIDER_DOMAIN" validate:"required,url"`
	ClientID     string        `env:"AUTH_CLIENT_ID"       validate:"required"`
	ClientSecret string        `env:"AUTH_CLIENT_SECRET"   validate:"required"`
	OIDCIssuer   string        `env:"AUTH_OIDC_ISSUER"     validate:"omitempty,url"`
	Scopes       string        `env:"AUTH_SCOPES"          envDefault:"email openid phone"`
	HTTPTimeout  time.Duration `env:"AUTH_HTTP_TIMEOUT"    envDefault:"10s" validate:"gt=0"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProviderDomain() string {
	return p.Domain
}

func (p Provider) GetClientID() string {
	return p.ClientID
}

func (p Provider) GetClientSecret() string {
	return p.ClientSecret
}

// GetOIDCIssuer returns the issuer to discover endpoints from. Empty disables
// discovery and ID token verification.
func (p Provider) GetOIDCIssuer() string {
	return p.OIDCIssuer
}

func (p Provider) GetScopes() []string {
	return strings.Fields(p.Scopes)
}

func (p Provider) GetHTTPTimeout() time.Duration {
	return p.HTTPTimeout
}
