package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Discovered pairs the endpoint set with the OIDC provider it came from, so
// ID tokens can be verified against the provider's published keys.
type Discovered struct {
	Endpoints Endpoints
	OIDC      *oidc.Provider
}

// Discover reads the issuer's discovery document for the authorize, token and
// userinfo endpoints. Logout always uses the hosted-UI path under domain
// because it takes client_id and logout_uri rather than the OIDC
// end-session parameters.
func Discover(ctx context.Context, client *http.Client, issuer, domain, clientID string) (*Discovered, error) {
	static, err := NewEndpoints(domain, clientID)
	if err != nil {
		return nil, err
	}

	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	e := Endpoints{
		ClientID:     clientID,
		AuthorizeURL: p.Endpoint().AuthURL,
		TokenURL:     p.Endpoint().TokenURL,
		UserInfoURL:  p.UserInfoEndpoint(),
		LogoutURL:    static.LogoutURL,
	}
	if e.UserInfoURL == "" {
		e.UserInfoURL = static.UserInfoURL
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	return &Discovered{Endpoints: e, OIDC: p}, nil
}
