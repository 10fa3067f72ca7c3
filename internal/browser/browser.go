// Package browser carries the identity of the calling browser through a request
// context: the tab scope for in-flight login state, the profile scope for the
// durable session, and the sink used to send the browser somewhere else.
package browser

import (
	"context"
	"fmt"
	"strings"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	contextKeyTabID     ContextKey = "browser_tab_id"
	contextKeyProfileID ContextKey = "browser_profile_id"
	contextKeyRedirect  ContextKey = "browser_redirect"
)

// RedirectFunc sends the browser to target.
type RedirectFunc func(target string)

// WithTab returns a context scoped to the given browser tab.
func WithTab(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, contextKeyTabID, tabID)
}

// WithProfile returns a context scoped to the given browser profile.
func WithProfile(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, contextKeyProfileID, profileID)
}

// WithRedirect attaches the function used to navigate the browser.
func WithRedirect(ctx context.Context, fn RedirectFunc) context.Context {
	return context.WithValue(ctx, contextKeyRedirect, fn)
}

// TabID returns the tab scope carried by ctx.
func TabID(ctx context.Context) (string, error) {
	return scopeValue(ctx, contextKeyTabID)
}

// ProfileID returns the profile scope carried by ctx.
func ProfileID(ctx context.Context) (string, error) {
	return scopeValue(ctx, contextKeyProfileID)
}

func scopeValue(ctx context.Context, key ContextKey) (string, error) {
	v, _ := ctx.Value(key).(string)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("[browser %s] %w", key, autherrors.ErrNoScope)
	}
	return v, nil
}

// Navigator redirects the browser attached to the context.
type Navigator struct{}

// Navigate calls the RedirectFunc attached to ctx.
func (Navigator) Navigate(ctx context.Context, target string) error {
	fn, ok := ctx.Value(contextKeyRedirect).(RedirectFunc)
	if !ok || fn == nil {
		return fmt.Errorf("[browser Navigate] no redirect sink in context: %w", autherrors.ErrUnsupported)
	}
	fn(target)
	return nil
}
