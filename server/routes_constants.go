package server

import "github.com/jrsteele09/go-auth-client/internal/config"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login flow
	RouteSignIn   = "/auth/signin"
	RouteSignUp   = "/auth/signup"
	RouteCallback = config.CallbackPath
	RouteSignOut  = "/auth/signout"

	// Auth Routes - Session state for the single-page app
	RouteSession = "/auth/session"

	// Pages owned by the single-page app that the flow redirects to
	RouteHome    = "/"
	RouteLanding = config.LandingPath

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	routeAuthPrefix = "/auth/"
)
