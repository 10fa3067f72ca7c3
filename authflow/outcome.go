package authflow

import (
	"fmt"

	"github.com/jrsteele09/go-auth-client/oauthmodel"
)

// ErrorKind classifies why a callback failed. The string form is used in
// query strings and metric labels.
type ErrorKind string

const (
	// ProviderRejected means the identity provider reported an error in the redirect.
	ProviderRejected ErrorKind = "provider_rejected"
	// CsrfMismatch means the state parameter was missing or did not match the stored value.
	// It is treated as a potential attack and never retried.
	CsrfMismatch ErrorKind = "csrf_mismatch"
	// MissingCode means the callback carried no authorization code.
	MissingCode ErrorKind = "missing_code"
	// TokenExchangeFailed covers network errors, non-2xx responses and invalid
	// token responses from the token endpoint.
	TokenExchangeFailed ErrorKind = "token_exchange_failed"
	// UserInfoFailed covers network errors and non-2xx responses from the userinfo endpoint.
	UserInfoFailed ErrorKind = "user_info_failed"
	// SessionCommitFailed means the provider calls succeeded but the session could not be stored.
	SessionCommitFailed ErrorKind = "session_commit_failed"
)

func (k ErrorKind) String() string {
	return string(k)
}

// Messages reported with a failed outcome. They are shown to the user, so
// transport detail stays in AuthError.Err.
const (
	MsgAuthenticationFailed = "authentication failed"
	MsgInvalidState         = "invalid state parameter"
	MsgNoCode               = "no authorization code received"
	MsgMissingAccessToken   = "missing access token"
	MsgTokenExchangeFailed  = "token exchange failed"
	MsgInvalidIDToken       = "invalid id token"
	MsgUserInfoFailed       = "failed to fetch user info"
	MsgSessionNotSaved      = "session could not be saved"
)

// AuthError is a failed callback.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, may be nil
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Outcome is the result of CompleteCallback. Exactly one of Profile or Err is set.
type Outcome struct {
	Profile oauthmodel.Profile
	Err     *AuthError
}

// Success reports whether the user is now signed in.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Failure returns the error when the callback failed.
func (o Outcome) Failure() (*AuthError, bool) {
	return o.Err, o.Err != nil
}

func (o Outcome) label() string {
	if o.Err == nil {
		return "success"
	}
	return o.Err.Kind.String()
}

func succeeded(profile oauthmodel.Profile) Outcome {
	return Outcome{Profile: profile}
}

func failed(kind ErrorKind, message string, err error) Outcome {
	return Outcome{Err: &AuthError{Kind: kind, Message: message, Err: err}}
}
