package authflow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-auth-client/flowstore"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/sessionstore"
)

// IsAuthenticated reports whether the browser profile has a completed
// session. Only the authenticated flag counts; other keys may exist after an
// interrupted commit.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	v, ok, err := c.sessions.Get(ctx, sessionstore.KeyAuthenticated)
	if err != nil {
		c.log.Debug().Err(err).Msg("session read failed")
		return false
	}
	return ok && v == sessionstore.AuthenticatedValue
}

// CurrentUser returns the stored profile of a signed in browser.
func (c *Controller) CurrentUser(ctx context.Context) (oauthmodel.Profile, bool) {
	if !c.IsAuthenticated(ctx) {
		return nil, false
	}
	raw, ok, err := c.sessions.Get(ctx, sessionstore.KeyUserProfile)
	if err != nil || !ok {
		return nil, false
	}
	profile, err := oauthmodel.UnmarshalProfile(raw)
	if err != nil {
		c.log.Err(err).Msg("stored profile is unreadable")
		return nil, false
	}
	return profile, true
}

// PendingEmail returns the email of a login this tab has started but not
// yet completed.
func (c *Controller) PendingEmail(ctx context.Context) string {
	email, _, err := c.flows.Get(ctx, flowstore.KeyPendingEmail)
	if err != nil {
		return ""
	}
	return email
}

// SignOut deletes the local session and redirects the browser to the
// provider's logout page, which returns it to LogoutURI.
func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.sessions.Clear(ctx, sessionstore.AllKeys); err != nil {
		return fmt.Errorf("[authflow SignOut] %w", err)
	}
	metrics.SignOuts.Inc()
	c.log.Info().Msg("signed out")

	if err := c.nav.Navigate(ctx, c.logoutURL()); err != nil {
		return fmt.Errorf("[authflow SignOut] %w", err)
	}
	return nil
}

// logoutURL builds {logout}?client_id&logout_uri.
func (c *Controller) logoutURL() string {
	q := url.Values{}
	q.Set(oauthmodel.ParamClientID, c.cfg.ClientID)
	q.Set(oauthmodel.ParamLogoutURI, c.cfg.LogoutURI)
	return c.cfg.Endpoints.LogoutURL + "?" + q.Encode()
}
