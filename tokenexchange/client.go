// Package tokenexchange performs the back-channel calls of the authorization
// code grant: code for tokens, then access token for the user's claims. Each
// call is made once. Nothing here retries.
package tokenexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/provider"
	"golang.org/x/oauth2"
)

// DefaultTimeout applies when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 1 << 20

// Tokens are the credentials returned by the token endpoint.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Expiry       time.Time
}

// HTTPError is a non-2xx response from a provider endpoint.
type HTTPError struct {
	Call       string // "token" or "userinfo"
	StatusCode int
	ErrorCode  string // OAuth2 "error" field, when present
	Body       string // truncated response body
}

func (e *HTTPError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s endpoint returned %d (%s)", e.Call, e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("%s endpoint returned %d", e.Call, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return autherrors.ErrProviderStatus
}

// Client talks to the provider's token and userinfo endpoints.
type Client struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// New creates a Client. The client secret stays on the server; it is only
// ever sent in the token request body.
func New(endpoints provider.Endpoints, clientSecret, redirectURI string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		oauth:       endpoints.OAuth2(clientSecret, redirectURI, nil),
		userInfoURL: endpoints.UserInfoURL,
		httpClient:  httpClient,
	}
}

// Exchange trades an authorization code for tokens with a single
// form-encoded POST to the token endpoint.
func (c *Client) Exchange(ctx context.Context, code string) (Tokens, error) {
	defer observe("token", time.Now())

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return Tokens{}, &HTTPError{Call: "token", StatusCode: status, ErrorCode: re.ErrorCode, Body: excerpt(re.Body)}
		}
		// x/oauth2 reports a 2xx body without access_token as a plain error.
		if strings.Contains(err.Error(), "missing access_token") {
			return Tokens{}, autherrors.ErrMissingAccessToken
		}
		return Tokens{}, fmt.Errorf("[tokenexchange Exchange] %w", err)
	}
	if tok.AccessToken == "" {
		return Tokens{}, autherrors.ErrMissingAccessToken
	}

	idToken, _ := tok.Extra("id_token").(string)
	return Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}, nil
}

// FetchUserInfo reads the claims for accessToken from the userinfo endpoint.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (oauthmodel.Profile, error) {
	defer observe("userinfo", time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("[tokenexchange FetchUserInfo] build request: %w", err)
	}
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[tokenexchange FetchUserInfo] %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("[tokenexchange FetchUserInfo] read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Call: "userinfo", StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	var profile oauthmodel.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("[tokenexchange FetchUserInfo] decode claims: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("[tokenexchange FetchUserInfo] empty claims document: %w", autherrors.ErrInvalidInput)
	}
	return profile, nil
}

func observe(call string, start time.Time) {
	metrics.ProviderRequestDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
}

func excerpt(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
