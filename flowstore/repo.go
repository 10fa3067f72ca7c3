// Package flowstore holds the short-lived state of a login flow that must
// survive exactly one redirect round-trip to the identity provider.
package flowstore

import "context"

// Keys written by the flow controller.
const (
	KeyState        = "state"
	KeyNonce        = "nonce"
	KeyPendingEmail = "pending_email"
	KeyPendingName  = "pending_name"
	KeyFlowKind     = "flow_kind"
)

// AllKeys lists every key of a flow entry.
var AllKeys = []string{KeyState, KeyNonce, KeyPendingEmail, KeyPendingName, KeyFlowKind}

// Store is tab-scoped key/value storage. The tab is taken from the context
// (see internal/browser).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context, keys []string) error
}
