package oauthmodel

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// The provider returns a short-lived code that the backend exchanges at the token endpoint.
	// Example: /oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token, id_token, refresh_token (if granted)
	AuthorizationCodeGrant GrantType = "authorization_code"
)

// ScreenHint selects which hosted page the provider shows first.
type ScreenHint string

const (
	// ScreenHintSignup asks the provider to open its registration page instead of the login page.
	// Sent as: &screen_hint=signup
	ScreenHintSignup ScreenHint = "signup"
)

// Scopes requested by the single-page application.
const (
	ScopeEmail  = "email"
	ScopeOpenID = "openid"
	ScopePhone  = "phone"
)

// DefaultScopes is the scope list sent on every authorization request.
var DefaultScopes = []string{ScopeEmail, ScopeOpenID, ScopePhone}

// Query parameter names used on the authorize, callback and logout URLs.
const (
	ParamClientID         = "client_id"
	ParamResponseType     = "response_type"
	ParamScope            = "scope"
	ParamRedirectURI      = "redirect_uri"
	ParamState            = "state"
	ParamNonce            = "nonce"
	ParamScreenHint       = "screen_hint"
	ParamCode             = "code"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamLogoutURI        = "logout_uri"
)
