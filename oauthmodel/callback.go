package oauthmodel

import (
	"net/url"
	"strings"
)

// CallbackParameters holds what the provider sent back to the redirect URI.
type CallbackParameters struct {
	// Code is the authorization code to exchange at the token endpoint.
	// Absent when: the provider reported an error
	Code string

	// State echoes the anti-forgery value sent on the authorize request.
	// Security: Must equal the value stored for this browser tab before any network call
	State string

	// Error is the provider's error code, e.g. "access_denied".
	Error string

	// ErrorDescription is a human-readable explanation of Error, if the provider sent one.
	ErrorDescription string

	hasError bool
}

// ParseCallbackParameters reads callback values from a query string or form.
func ParseCallbackParameters(values url.Values) CallbackParameters {
	_, hasError := values[ParamError]
	return CallbackParameters{
		Code:             strings.TrimSpace(values.Get(ParamCode)),
		State:            values.Get(ParamState),
		Error:            values.Get(ParamError),
		ErrorDescription: values.Get(ParamErrorDescription),
		hasError:         hasError,
	}
}

// HasError reports whether the provider included an error key at all, even an empty one.
func (p CallbackParameters) HasError() bool {
	return p.hasError
}
