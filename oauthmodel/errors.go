package oauthmodel

import "errors"

var (
	ErrInvalidRedirectUri = errors.New("invalid or no redirect uri")
	ErrInvalidEndpoint    = errors.New("invalid provider endpoint")
	ErrMissingClientID    = errors.New("missing client id")
)
