// Package sessionstore holds the durable result of a successful login for a
// browser profile until the user signs out.
package sessionstore

import "context"

// Keys written by the flow controller.
const (
	KeyAccessToken   = "access_token"
	KeyRefreshToken  = "refresh_token"
	KeyIDToken       = "id_token"
	KeyUserProfile   = "user_profile"
	KeyExpiresAt     = "expires_at"
	KeyAuthenticated = "authenticated"
)

// AuthenticatedValue is the only value of KeyAuthenticated that means signed in.
const AuthenticatedValue = "true"

// AllKeys lists every key of a session.
var AllKeys = []string{KeyAuthenticated, KeyAccessToken, KeyRefreshToken, KeyIDToken, KeyUserProfile, KeyExpiresAt}

// Store is profile-scoped key/value storage. The profile is taken from the
// context (see internal/browser).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context, keys []string) error
}
