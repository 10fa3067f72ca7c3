package server

import (
	"encoding/json"
	"errors"
	"net/http"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/rs/zerolog/log"
)

const errorInvalidInput = "invalid_input"

type sessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	Profile       oauthmodel.Profile `json:"profile"`
	PendingEmail  string             `json:"pending_email"`
}

func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, target := captureRedirect(r.Context())
		err := s.auth.BeginSignIn(ctx, r.FormValue("email"))
		s.finishBegin(w, r, err, *target, "a valid email address is required")
	}
}

func (s *Server) SignUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, target := captureRedirect(r.Context())
		err := s.auth.BeginSignUp(ctx, r.FormValue("name"), r.FormValue("email"))
		s.finishBegin(w, r, err, *target, "a name and a valid email address are required")
	}
}

func (s *Server) finishBegin(w http.ResponseWriter, r *http.Request, err error, target, invalidMsg string) {
	switch {
	case errors.Is(err, autherrors.ErrInvalidInput):
		redirectWithError(w, r, RouteLanding, errorInvalidInput, invalidMsg)
	case err != nil:
		log.Err(err).Msg("failed to start login flow")
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
	case target == "":
		log.Error().Msg("login flow started without a redirect")
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
	default:
		redirectSuccess(w, r, target)
	}
}

func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse form to support both GET (query params) and POST (form_post response mode)
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLanding, errorInvalidInput, "malformed callback")
			return
		}

		outcome := s.auth.CompleteCallback(r.Context(), r.Form)
		if authErr, failed := outcome.Failure(); failed {
			redirectWithError(w, r, RouteLanding, authErr.Kind.String(), authErr.Message)
			return
		}

		s.refreshProfileCookie(w, r)
		redirectSuccess(w, r, RouteHome)
	}
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := sessionResponse{
			Authenticated: s.auth.IsAuthenticated(r.Context()),
			PendingEmail:  s.auth.PendingEmail(r.Context()),
		}
		if profile, ok := s.auth.CurrentUser(r.Context()); ok {
			resp.Profile = profile
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Err(err).Msg("failed to write session response")
		}
	}
}

func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, target := captureRedirect(r.Context())
		if err := s.auth.SignOut(ctx); err != nil {
			log.Err(err).Msg("failed to sign out")
			http.Error(w, "Failed to sign out", http.StatusInternalServerError)
			return
		}
		redirectSuccess(w, r, *target)
	}
}
