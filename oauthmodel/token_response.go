package oauthmodel

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the bearer credential presented to the userinfo endpoint.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Required: Yes, a response without it is treated as a failed exchange
	AccessToken string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity information.
	// Only present: When "openid" scope was requested
	IdToken string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token.
	// Example: "Bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 3600
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Stored with the session, never refreshed by this client.
	RefreshToken string `json:"refresh_token,omitempty"`
}
