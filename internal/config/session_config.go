package config

import "time"

const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"
)

type SessionConfig interface {
	GetFlowTTL() time.Duration
	GetSessionTTL() time.Duration
	GetSessionBackend() string
	GetSessionDBPath() string
	GetSessionEncryptionKey() []byte
}

type Session struct {
	FlowTTL       time.Duration `env:"AUTH_FLOW_TTL"               envDefault:"15m"  validate:"gt=0"`
	SessionTTL    time.Duration `env:"AUTH_SESSION_TTL"            envDefault:"720h" validate:"gt=0"`
	Backend       string        `env:"AUTH_SESSION_BACKEND"        envDefault:"sqlite" validate:"oneof=memory sqlite"`
	DBPath        string        `env:"AUTH_SESSION_DB"             envDefault:"./data/sessions.db"`
	EncryptionKey string        `env:"AUTH_SESSION_ENCRYPTION_KEY" validate:"required_if=Backend sqlite"`
}

var _ SessionConfig = Session{}

// GetFlowTTL bounds how long a started login may wait for its callback.
func (s Session) GetFlowTTL() time.Duration {
	return s.FlowTTL
}

// GetSessionTTL is the lifetime of the profile cookie and of idle stored sessions.
func (s Session) GetSessionTTL() time.Duration {
	return s.SessionTTL
}

func (s Session) GetSessionBackend() string {
	return s.Backend
}

func (s Session) GetSessionDBPath() string {
	return s.DBPath
}

func (s Session) GetSessionEncryptionKey() []byte {
	return []byte(s.EncryptionKey)
}
