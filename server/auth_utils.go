package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/browser"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
)

const (
	// tabCookieName scopes in-flight login state. It has no Max-Age so it
	// ends with the browser session.
	tabCookieName = "auth_tab_id"
	// profileCookieName scopes the stored session and lasts for the session TTL.
	profileCookieName = "auth_profile_id"
)

func (s *Server) withBrowserScope(w http.ResponseWriter, r *http.Request) context.Context {
	tabID := s.scopeID(w, r, tabCookieName, 0)
	profileID := s.scopeID(w, r, profileCookieName, s.profileMaxAge())
	return browser.WithProfile(browser.WithTab(r.Context(), tabID), profileID)
}

// scopeID returns the id in the named cookie, issuing a new one when the
// cookie is missing or not a UUID.
func (s *Server) scopeID(w http.ResponseWriter, r *http.Request, name string, maxAge int) string {
	if c, err := r.Cookie(name); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	s.setScopeCookie(w, r, name, id, maxAge)
	return id
}

func (s *Server) setScopeCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	isSecure := getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// refreshProfileCookie restarts the profile cookie's lifetime after a sign in.
func (s *Server) refreshProfileCookie(w http.ResponseWriter, r *http.Request) {
	profileID, err := browser.ProfileID(r.Context())
	if err != nil {
		return
	}
	s.setScopeCookie(w, r, profileCookieName, profileID, s.profileMaxAge())
}

func (s *Server) profileMaxAge() int {
	return int(s.sessionTTL.Seconds())
}

// captureRedirect returns a context whose navigator records the target
// instead of writing a response, so the handler can choose how to redirect.
func captureRedirect(ctx context.Context) (context.Context, *string) {
	target := new(string)
	return browser.WithRedirect(ctx, func(t string) { *target = t }), target
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, kind, description string) {
	q := url.Values{}
	q.Set(oauthmodel.ParamError, kind)
	q.Set(oauthmodel.ParamErrorDescription, description)
	fullPath := path + "?" + q.Encode()

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
