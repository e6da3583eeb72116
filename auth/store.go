package auth

import (
	"sync"

	"go.uber.org/zap"

	"github.com/liminal-ai-security/liminal-sdk-go/internal/callbacks"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
)

// Store holds a client's current credential and the callbacks notified when
// a new one is obtained. It is not persisted.
type Store struct {
	mu       sync.RWMutex
	current  Credential
	provider Provider
	apiKey   string

	callbacks callbacks.Registry[Credential]
	log       *zap.Logger
}

// NewStore creates an empty store.
func NewStore(log *zap.Logger) *Store {
	return &Store{log: logger.OrNop(log).With(logger.Scope("auth.store"))}
}

// Load returns the current credential, or nil before the first
// authentication.
func (s *Store) Load() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the current credential.
func (s *Store) Set(c Credential) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
	s.log.Debug("saved credential", zap.String("kind", Kind(c)))
}

// Provider returns the provider recorded by the last provider exchange.
func (s *Store) Provider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// SetProvider records p for later re-exchanges.
func (s *Store) SetProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

// APIKey returns the test-automation key recorded by the last token login.
func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// SetAPIKey records key for later logins.
func (s *Store) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// OnCredential registers fn. The returned func removes this registration.
func (s *Store) OnCredential(fn func(Credential)) (cancel func()) {
	return s.callbacks.Add(fn)
}

// Notify calls every registered callback with c, in registration order. A
// panicking callback is logged and skipped.
func (s *Store) Notify(c Credential) {
	s.callbacks.Notify(c, func(rec any) {
		s.log.Warn("credential callback panicked", zap.Any("recovered", rec))
	})
}

// Kind names a credential's variant for logging.
func Kind(c Credential) string {
	switch c.(type) {
	case BearerSession:
		return "bearer"
	case SessionCookie:
		return "session_cookie"
	case SessionID:
		return "session_id"
	case nil:
		return "none"
	default:
		return "unknown"
	}
}
