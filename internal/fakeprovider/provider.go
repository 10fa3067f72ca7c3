// Package fakeprovider is an in-process OpenID Connect identity provider used
// by tests. It serves discovery, JWKS, authorize, token, userinfo and logout
// endpoints on an httptest server and records what it was asked.
package fakeprovider

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/provider"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	DefaultClientID     = "test-client-1"
	DefaultClientSecret = "test-secret-1"
)

// Grant is what an issued authorization code stands for.
type Grant struct {
	Nonce       string
	RedirectURI string
	Profile     map[string]any
}

// Provider is a fake identity provider.
type Provider struct {
	Server       *httptest.Server
	ClientID     string
	ClientSecret string

	keys *KeyPair

	mu sync.Mutex
	// Profile is returned by userinfo and embedded in ID tokens.
	profile map[string]any
	grants  map[string]Grant  // code -> grant
	issued  map[string]string // access token -> code

	// Failure switches.
	tokenStatus     int
	omitAccessToken bool
	omitIDToken     bool
	userInfoStatus  int
	idTokenNonce    *string
	userInfoSubject *string

	tokenRequests     []url.Values
	userInfoRequests  []string // Authorization headers
	authorizeRequests []url.Values
	logoutRequests    []url.Values
}

// New starts a fake provider. Close it with Close.
func New() (*Provider, error) {
	kp, err := GenerateRSAKeyPair("fake-key-1")
	if err != nil {
		return nil, err
	}

	p := &Provider{
		ClientID:     DefaultClientID,
		ClientSecret: DefaultClientSecret,
		keys:         kp,
		profile:      map[string]any{"sub": "user-1", "email": "a@b.com"},
		grants:       make(map[string]Grant),
		issued:       make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.wellKnown)
	mux.HandleFunc("GET /.well-known/jwks.json", p.jwks)
	mux.HandleFunc("GET "+provider.PathAuthorize, p.authorize)
	mux.HandleFunc("POST "+provider.PathToken, p.token)
	mux.HandleFunc("GET "+provider.PathUserInfo, p.userInfo)
	mux.HandleFunc("GET "+provider.PathLogout, p.logout)
	p.Server = httptest.NewServer(mux)
	return p, nil
}

// Close shuts the server down.
func (p *Provider) Close() {
	p.Server.Close()
}

// URL is the provider's base domain and issuer.
func (p *Provider) URL() string {
	return p.Server.URL
}

// Endpoints returns the static endpoint set for this provider.
func (p *Provider) Endpoints() provider.Endpoints {
	e, err := provider.NewEndpoints(p.URL(), p.ClientID)
	if err != nil {
		panic(err) // httptest URLs are always valid
	}
	return e
}

// SetProfile replaces the claims returned for new grants and by userinfo.
func (p *Provider) SetProfile(profile map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = profile
}

// IssueCode registers an authorization code, as if the user had logged in.
func (p *Provider) IssueCode(code, nonce, redirectURI string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grants[code] = Grant{Nonce: nonce, RedirectURI: redirectURI, Profile: p.profile}
}

// FailToken makes the token endpoint answer with status.
func (p *Provider) FailToken(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// OmitAccessToken makes the token endpoint answer 200 without access_token.
func (p *Provider) OmitAccessToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitAccessToken = true
}

// OmitIDToken stops the token endpoint returning an id_token.
func (p *Provider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// ForceIDTokenNonce signs ID tokens with nonce regardless of the grant.
func (p *Provider) ForceIDTokenNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenNonce = &nonce
}

// ForceUserInfoSubject makes userinfo report sub regardless of the profile.
func (p *Provider) ForceUserInfoSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoSubject = &sub
}

// FailUserInfo makes the userinfo endpoint answer with status.
func (p *Provider) FailUserInfo(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoStatus = status
}

// TokenRequests returns the forms posted to the token endpoint.
func (p *Provider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.tokenRequests...)
}

// UserInfoRequests returns the Authorization headers sent to userinfo.
func (p *Provider) UserInfoRequests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.userInfoRequests...)
}

// AuthorizeRequests returns the query strings the browser arrived with.
func (p *Provider) AuthorizeRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.authorizeRequests...)
}

// LogoutRequests returns the query strings sent to logout.
func (p *Provider) LogoutRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.logoutRequests...)
}

// BackChannelCalls is the number of token plus userinfo requests received.
func (p *Provider) BackChannelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokenRequests) + len(p.userInfoRequests)
}

func (p *Provider) wellKnown(w http.ResponseWriter, r *http.Request) {
	base := p.URL()
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + provider.PathAuthorize,
		"token_endpoint":                        base + provider.PathToken,
		"userinfo_endpoint":                     base + provider.PathUserInfo,
		"jwks_uri":                              base + "/.well-known/jwks.json",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{RS256},
		"scopes_supported":                      oauthmodel.DefaultScopes,
	})
}

func (p *Provider) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{p.keys.ToJWK()}})
}

// authorize approves immediately: it issues a code and sends the browser
// back to redirect_uri, as a provider would after a successful login.
func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p.mu.Lock()
	p.authorizeRequests = append(p.authorizeRequests, q)
	p.mu.Unlock()

	if q.Get(oauthmodel.ParamClientID) != p.ClientID {
		http.Error(w, "unknown client", http.StatusBadRequest)
		return
	}
	if oauthmodel.ResponseType(q.Get(oauthmodel.ParamResponseType)) != oauthmodel.CodeResponseType {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	redirectURI, err := url.Parse(q.Get(oauthmodel.ParamRedirectURI))
	if err != nil || redirectURI.Host == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code := "code-" + uuid.NewString()
	p.IssueCode(code, q.Get(oauthmodel.ParamNonce), redirectURI.String())

	back := redirectURI.Query()
	back.Set(oauthmodel.ParamCode, code)
	back.Set(oauthmodel.ParamState, q.Get(oauthmodel.ParamState))
	redirectURI.RawQuery = back.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenRequests = append(p.tokenRequests, r.PostForm)

	if p.tokenStatus != 0 {
		writeOAuthError(w, "server_error", "forced failure", p.tokenStatus)
		return
	}
	if r.PostForm.Get("grant_type") != string(oauthmodel.AuthorizationCodeGrant) {
		writeOAuthError(w, "unsupported_grant_type", "", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("client_id") != p.ClientID || r.PostForm.Get("client_secret") != p.ClientSecret {
		writeOAuthError(w, "invalid_client", "", http.StatusUnauthorized)
		return
	}

	code := r.PostForm.Get("code")
	grant, ok := p.grants[code]
	if !ok {
		writeOAuthError(w, "invalid_grant", "unknown or used code", http.StatusBadRequest)
		return
	}
	if grant.RedirectURI != "" && grant.RedirectURI != r.PostForm.Get("redirect_uri") {
		writeOAuthError(w, "invalid_grant", "redirect_uri mismatch", http.StatusBadRequest)
		return
	}
	delete(p.grants, code) // codes are single use

	resp := oauthmodel.TokenResponse{
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "rt-" + uuid.NewString(),
	}
	if !p.omitAccessToken {
		resp.AccessToken = "at-" + uuid.NewString()
		p.issued[resp.AccessToken] = code
	}
	if !p.omitIDToken {
		nonce := grant.Nonce
		if p.idTokenNonce != nil {
			nonce = *p.idTokenNonce
		}
		idToken, err := p.createIDToken(grant.Profile, nonce)
		if err != nil {
			writeOAuthError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		resp.IdToken = idToken
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) userInfo(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoRequests = append(p.userInfoRequests, authHeader)

	if p.userInfoStatus != 0 {
		writeOAuthError(w, "server_error", "forced failure", p.userInfoStatus)
		return
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		writeOAuthError(w, "invalid_token", "Invalid Authorization header format", http.StatusUnauthorized)
		return
	}
	if _, ok := p.issued[parts[1]]; !ok {
		writeOAuthError(w, "invalid_token", "unknown access token", http.StatusUnauthorized)
		return
	}
	profile := maps.Clone(p.profile)
	if p.userInfoSubject != nil {
		if profile == nil {
			profile = map[string]any{}
		}
		profile["sub"] = *p.userInfoSubject
	}
	writeJSON(w, http.StatusOK, profile)
}

func (p *Provider) logout(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.logoutRequests = append(p.logoutRequests, r.URL.Query())
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// createIDToken creates an OpenID Connect ID token for the profile.
func (p *Provider) createIDToken(profile map[string]any, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.URL(),
		"aud": p.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"jti": uuid.NewString(),
	}
	for k, v := range profile {
		claims[k] = v
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	signed, err := p.keys.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[fakeprovider createIDToken] %w", err)
	}
	return signed, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOAuthError writes an OAuth2 error response
func writeOAuthError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
