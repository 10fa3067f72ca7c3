package oauthmodel

import (
	"encoding/json"
	"fmt"
)

// Profile is the claims document returned by the userinfo endpoint.
// It is kept as an opaque mapping and is not validated against a schema.
type Profile map[string]any

// Str returns the claim as a string, or "" when absent or not a string.
func (p Profile) Str(claim string) string {
	if p == nil {
		return ""
	}
	s, _ := p[claim].(string)
	return s
}

// Email returns the "email" claim.
func (p Profile) Email() string { return p.Str("email") }

// Subject returns the "sub" claim.
func (p Profile) Subject() string { return p.Str("sub") }

// Name returns the "name" claim.
func (p Profile) Name() string { return p.Str("name") }

// Marshal encodes the profile for storage.
func (p Profile) Marshal() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("[Profile Marshal] %w", err)
	}
	return string(b), nil
}

// UnmarshalProfile decodes a stored profile.
func UnmarshalProfile(s string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("[UnmarshalProfile] %w", err)
	}
	return p, nil
}
