package tokenexchange

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
)

// IDTokenVerifier checks an ID token's signature against the provider's
// published keys, then its issuer, audience, expiry and nonce.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier builds a verifier for tokens issued to clientID.
func NewIDTokenVerifier(p *oidc.Provider, clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}
}

// Verify validates rawIDToken and returns its claims.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken, expectedNonce string) (oauthmodel.Profile, error) {
	if rawIDToken == "" {
		return nil, autherrors.ErrMissingIDToken
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}

	// Validate nonce to prevent replay attacks
	if expectedNonce == "" || subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(expectedNonce)) != 1 {
		return nil, autherrors.ErrNonceMismatch
	}

	var claims oauthmodel.Profile
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	return claims, nil
}
