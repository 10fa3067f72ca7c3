package authflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-client/flowstore"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"golang.org/x/oauth2"
)

// FlowKind is the page the provider should open first.
type FlowKind string

const (
	FlowSignIn FlowKind = "signin"
	FlowSignUp FlowKind = "signup"
)

// BeginSignIn starts a login and redirects the browser to the provider's
// login page. The email is kept with the flow so the UI can show it while
// the login is pending.
func (c *Controller) BeginSignIn(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := c.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("[authflow BeginSignIn] email: %w", autherrors.ErrInvalidInput)
	}
	return c.begin(ctx, FlowSignIn, "", email)
}

// BeginSignUp starts a registration and redirects the browser to the
// provider's sign-up page.
func (c *Controller) BeginSignUp(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return fmt.Errorf("[authflow BeginSignUp] name: %w", autherrors.ErrInvalidInput)
	}
	if err := c.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("[authflow BeginSignUp] email: %w", autherrors.ErrInvalidInput)
	}
	return c.begin(ctx, FlowSignUp, name, email)
}

func (c *Controller) begin(ctx context.Context, kind FlowKind, name, email string) error {
	state, err := c.random.String(c.cfg.StateLength)
	if err != nil {
		return fmt.Errorf("[authflow begin] state: %w", err)
	}
	var nonce string
	if c.cfg.VerifyIDToken {
		if nonce, err = c.random.String(c.cfg.StateLength); err != nil {
			return fmt.Errorf("[authflow begin] nonce: %w", err)
		}
	}

	// A new flow replaces whatever this tab had in flight.
	if err := c.flows.Clear(ctx, flowstore.AllKeys); err != nil {
		return fmt.Errorf("[authflow begin] clear previous flow: %w", err)
	}
	values := map[string]string{
		flowstore.KeyState:        state,
		flowstore.KeyNonce:        nonce,
		flowstore.KeyPendingEmail: email,
		flowstore.KeyPendingName:  name,
		flowstore.KeyFlowKind:     string(kind),
	}
	for _, key := range flowstore.AllKeys {
		if values[key] == "" {
			continue
		}
		if err := c.flows.Set(ctx, key, values[key]); err != nil {
			return fmt.Errorf("[authflow begin] store %s: %w", key, err)
		}
	}

	target := c.authorizeURL(kind, state, nonce)
	metrics.FlowsStarted.WithLabelValues(string(kind)).Inc()
	c.log.Info().Str("kind", string(kind)).Msg("login flow started")

	if err := c.nav.Navigate(ctx, target); err != nil {
		return fmt.Errorf("[authflow begin] %w", err)
	}
	return nil
}

// authorizeURL builds
// {authorize}?client_id&response_type=code&scope&redirect_uri&state[&nonce][&screen_hint=signup].
func (c *Controller) authorizeURL(kind FlowKind, state, nonce string) string {
	var opts []oauth2.AuthCodeOption
	if nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam(oauthmodel.ParamNonce, nonce))
	}
	if kind == FlowSignUp {
		opts = append(opts, oauth2.SetAuthURLParam(oauthmodel.ParamScreenHint, string(oauthmodel.ScreenHintSignup)))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}
