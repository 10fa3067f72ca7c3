package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-client/flowstore"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/sessionstore"
	"github.com/jrsteele09/go-auth-client/tokenexchange"
)

// CompleteCallback finishes the flow started by BeginSignIn or BeginSignUp
// using the parameters the provider sent to the redirect URI. Whatever the
// outcome, the tab's flow state is gone when it returns, so replaying the
// same parameters can never succeed.
func (c *Controller) CompleteCallback(ctx context.Context, query url.Values) (outcome Outcome) {
	defer func() {
		if err := c.flows.Clear(ctx, flowstore.AllKeys); err != nil {
			c.log.Err(err).Msg("failed to clear flow state")
		}
		metrics.Callbacks.WithLabelValues(outcome.label()).Inc()
		if authErr, failed := outcome.Failure(); failed {
			c.log.Warn().Err(authErr.Err).Str("kind", authErr.Kind.String()).Str("reason", authErr.Message).Msg("login callback failed")
			return
		}
		c.log.Info().Msg("login callback succeeded")
	}()

	params := oauthmodel.ParseCallbackParameters(query)

	// The provider's own error wins without looking at stored state.
	if params.HasError() {
		message := params.ErrorDescription
		if message == "" {
			message = MsgAuthenticationFailed
		}
		return failed(ProviderRejected, message, nil)
	}

	// Anti-forgery gate. Nothing below may run unless state matches.
	storedState, ok, err := c.flows.Get(ctx, flowstore.KeyState)
	if err != nil || !ok || storedState == "" ||
		subtle.ConstantTimeCompare([]byte(params.State), []byte(storedState)) != 1 {
		return failed(CsrfMismatch, MsgInvalidState, err)
	}

	if params.Code == "" {
		return failed(MissingCode, MsgNoCode, nil)
	}

	tokens, err := c.tokens.Exchange(ctx, params.Code)
	if err != nil {
		if errors.Is(err, autherrors.ErrMissingAccessToken) {
			return failed(TokenExchangeFailed, MsgMissingAccessToken, err)
		}
		return failed(TokenExchangeFailed, MsgTokenExchangeFailed, err)
	}
	if tokens.AccessToken == "" {
		return failed(TokenExchangeFailed, MsgMissingAccessToken, autherrors.ErrMissingAccessToken)
	}

	var idClaims oauthmodel.Profile
	if c.cfg.VerifyIDToken {
		nonce, _, err := c.flows.Get(ctx, flowstore.KeyNonce)
		if err != nil {
			return failed(TokenExchangeFailed, MsgInvalidIDToken, err)
		}
		if idClaims, err = c.verifier.Verify(ctx, tokens.IDToken, nonce); err != nil {
			return failed(TokenExchangeFailed, MsgInvalidIDToken, err)
		}
	}

	profile, err := c.tokens.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return failed(UserInfoFailed, MsgUserInfoFailed, err)
	}

	// Userinfo must describe the user the ID token was issued for.
	if c.cfg.VerifyIDToken && (idClaims.Subject() == "" || profile.Subject() != idClaims.Subject()) {
		return failed(UserInfoFailed, MsgUserInfoFailed,
			fmt.Errorf("%w: id token %q, userinfo %q", autherrors.ErrSubjectMismatch, idClaims.Subject(), profile.Subject()))
	}

	if err := c.commit(ctx, tokens, profile); err != nil {
		return failed(SessionCommitFailed, MsgSessionNotSaved, err)
	}
	return succeeded(profile)
}

// commit stores the session. The authenticated flag is removed first and
// written last, so a partial commit always reads as signed out.
func (c *Controller) commit(ctx context.Context, tokens tokenexchange.Tokens, profile oauthmodel.Profile) error {
	encoded, err := profile.Marshal()
	if err != nil {
		return err
	}

	if err := c.sessions.Remove(ctx, sessionstore.KeyAuthenticated); err != nil {
		return autherrors.Wrapf(err, "[authflow commit] remove %s", sessionstore.KeyAuthenticated)
	}

	var expiresAt string
	if !tokens.Expiry.IsZero() {
		expiresAt = tokens.Expiry.UTC().Format(time.RFC3339)
	}
	values := []struct{ key, value string }{
		{sessionstore.KeyAccessToken, tokens.AccessToken},
		{sessionstore.KeyRefreshToken, tokens.RefreshToken},
		{sessionstore.KeyIDToken, tokens.IDToken},
		{sessionstore.KeyUserProfile, encoded},
		{sessionstore.KeyExpiresAt, expiresAt},
	}
	for _, v := range values {
		// Optional values from an earlier session must not linger.
		if v.value == "" {
			err = c.sessions.Remove(ctx, v.key)
		} else {
			err = c.sessions.Set(ctx, v.key, v.value)
		}
		if err != nil {
			return autherrors.Wrapf(err, "[authflow commit] store %s", v.key)
		}
	}

	if err := c.sessions.Set(ctx, sessionstore.KeyAuthenticated, sessionstore.AuthenticatedValue); err != nil {
		return autherrors.Wrapf(err, "[authflow commit] store %s", sessionstore.KeyAuthenticated)
	}
	return nil
}
