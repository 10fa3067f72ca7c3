// Package provider describes where the identity provider's endpoints live.
package provider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"golang.org/x/oauth2"
)

// Hosted-UI paths relative to the provider domain.
const (
	PathAuthorize = "/oauth2/authorize"
	PathToken     = "/oauth2/token"
	PathUserInfo  = "/oauth2/userInfo"
	PathLogout    = "/logout"
)

// Endpoints is the static set of provider URLs used by one client.
type Endpoints struct {
	ClientID     string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	LogoutURL    string
}

// NewEndpoints builds the endpoint set from the provider's base domain.
func NewEndpoints(domain, clientID string) (Endpoints, error) {
	base, err := normaliseBase(domain)
	if err != nil {
		return Endpoints{}, err
	}
	if strings.TrimSpace(clientID) == "" {
		return Endpoints{}, fmt.Errorf("[provider NewEndpoints] %w", oauthmodel.ErrMissingClientID)
	}

	return Endpoints{
		ClientID:     clientID,
		AuthorizeURL: base + PathAuthorize,
		TokenURL:     base + PathToken,
		UserInfoURL:  base + PathUserInfo,
		LogoutURL:    base + PathLogout,
	}, nil
}

// Validate checks every endpoint is an absolute http(s) URL.
func (e Endpoints) Validate() error {
	if strings.TrimSpace(e.ClientID) == "" {
		return fmt.Errorf("[Endpoints Validate] %w", oauthmodel.ErrMissingClientID)
	}
	for name, raw := range map[string]string{
		"authorize": e.AuthorizeURL,
		"token":     e.TokenURL,
		"userinfo":  e.UserInfoURL,
		"logout":    e.LogoutURL,
	} {
		if _, err := parseAbsolute(raw); err != nil {
			return fmt.Errorf("[Endpoints Validate] %s: %w", name, err)
		}
	}
	return nil
}

// OAuth2 returns the x/oauth2 configuration for the authorization code grant.
// Client credentials travel in the form body, as the provider expects.
func (e Endpoints) OAuth2(clientSecret, redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.AuthorizeURL,
			TokenURL:  e.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func normaliseBase(domain string) (string, error) {
	u, err := parseAbsolute(strings.TrimSpace(domain))
	if err != nil {
		return "", fmt.Errorf("[provider domain] %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oauthmodel.ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http(s) url", oauthmodel.ErrInvalidEndpoint, raw)
	}
	return u, nil
}
