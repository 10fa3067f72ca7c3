// Package authflow drives the OAuth2 authorization code flow for a browser:
// it starts a login at the identity provider, completes the callback, and
// answers whether the browser is signed in.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-auth-client/flowstore"
	"github.com/jrsteele09/go-auth-client/internal/browser"
	"github.com/jrsteele09/go-auth-client/internal/random"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/sessionstore"
	"github.com/jrsteele09/go-auth-client/tokenexchange"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultStateLength is the length of the anti-forgery state and nonce values.
const DefaultStateLength = 32

// TokenExchanger makes the back-channel calls to the provider.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (tokenexchange.Tokens, error)
	FetchUserInfo(ctx context.Context, accessToken string) (oauthmodel.Profile, error)
}

// IDTokenVerifier validates an ID token and its nonce.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken, expectedNonce string) (oauthmodel.Profile, error)
}

// Navigator sends the browser behind ctx to target.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// RandomSource produces unguessable alphanumeric strings.
type RandomSource interface {
	String(length int) (string, error)
}

// Config is the controller's fixed configuration.
type Config struct {
	// ClientID defaults to Endpoints.ClientID.
	ClientID  string
	Endpoints provider.Endpoints
	// RedirectURI is the application's callback URL, e.g. https://app.example.com/auth/callback.
	RedirectURI string
	// LogoutURI is where the provider sends the browser after logout, e.g. https://app.example.com/landing.
	LogoutURI   string
	Scopes      []string
	StateLength int
	// VerifyIDToken sends a nonce and checks the returned ID token against it.
	VerifyIDToken bool
}

// Dependencies are the collaborators injected into the controller.
type Dependencies struct {
	FlowStore    flowstore.Store
	SessionStore sessionstore.Store
	Tokens       TokenExchanger
	Verifier     IDTokenVerifier // required when Config.VerifyIDToken
	Navigator    Navigator       // defaults to browser.Navigator
	Random       RandomSource    // defaults to crypto/rand
	Logger       zerolog.Logger
}

// Controller runs login flows. It is safe for concurrent use by many browsers;
// each call is scoped by the tab and profile ids carried in its context.
type Controller struct {
	cfg      Config
	oauth    *oauth2.Config
	flows    flowstore.Store
	sessions sessionstore.Store
	tokens   TokenExchanger
	verifier IDTokenVerifier
	nav      Navigator
	random   RandomSource
	validate *validator.Validate
	log      zerolog.Logger
}

// New builds a Controller.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.Endpoints.ClientID
	}
	cfg.Endpoints.ClientID = cfg.ClientID
	if err := cfg.Endpoints.Validate(); err != nil {
		return nil, fmt.Errorf("[authflow New] %w", err)
	}
	if err := requireAbsoluteURL(cfg.RedirectURI); err != nil {
		return nil, fmt.Errorf("[authflow New] redirect uri: %w", err)
	}
	if err := requireAbsoluteURL(cfg.LogoutURI); err != nil {
		return nil, fmt.Errorf("[authflow New] logout uri: %w", err)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = oauthmodel.DefaultScopes
	}
	if cfg.StateLength <= 0 {
		cfg.StateLength = DefaultStateLength
	}

	if deps.FlowStore == nil {
		return nil, errors.New("[authflow New] flow store is required")
	}
	if deps.SessionStore == nil {
		return nil, errors.New("[authflow New] session store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[authflow New] token exchanger is required")
	}
	if cfg.VerifyIDToken && deps.Verifier == nil {
		return nil, errors.New("[authflow New] ID token verification enabled without a verifier")
	}
	if deps.Navigator == nil {
		deps.Navigator = browser.Navigator{}
	}
	if deps.Random == nil {
		deps.Random = random.New()
	}

	return &Controller{
		cfg: cfg,
		// The secret is not needed to build authorize URLs.
		oauth:    cfg.Endpoints.OAuth2("", cfg.RedirectURI, cfg.Scopes),
		flows:    deps.FlowStore,
		sessions: deps.SessionStore,
		tokens:   deps.Tokens,
		verifier: deps.Verifier,
		nav:      deps.Navigator,
		random:   deps.Random,
		validate: validator.New(),
		log:      deps.Logger.With().Str("component", "authflow").Logger(),
	}, nil
}

func requireAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", oauthmodel.ErrInvalidRedirectUri, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: %q", oauthmodel.ErrInvalidRedirectUri, raw)
	}
	return nil
}
