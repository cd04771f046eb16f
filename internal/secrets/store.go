// Package secrets persists named credential strings across restarts,
// preferring the OS keychain and degrading to an in-process map only when the
// deployment mode permits it.
package secrets

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/prometheus/client_golang/prometheus"

	gwerrors "phi-gateway/pkg/errors"
)

// serviceName scopes all keychain entries owned by the gateway.
const serviceName = "phi-gateway"

// probeEntry is read once at startup to establish keychain availability.
const probeEntry = "phi-gateway-probe"

// ErrUnavailable is returned by New when the OS keychain cannot be reached
// and the mode forbids the in-memory fallback.
var ErrUnavailable = gwerrors.New(gwerrors.CodeSecretStoreUnavailable,
	"OS keychain unavailable and fallback storage is not permitted in networked mode")

// Keyring abstracts the OS secure store so tests can substitute a fake.
type Keyring interface {
	Get(service, name string) (string, error)
	Set(service, name, value string) error
	Delete(service, name string) error
}

// IsNotFound reports whether a keyring error means "entry absent" rather than
// "store broken".
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}

// osKeyring is the production Keyring backed by zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, name string) (string, error) { return keyring.Get(service, name) }
func (osKeyring) Set(service, name, value string) error    { return keyring.Set(service, name, value) }
func (osKeyring) Delete(service, name string) error        { return keyring.Delete(service, name) }

// state models the degradation machine. The store starts in statePrimary when
// the keychain probe succeeds and transitions to stateFallback at most once,
// on the first write failure. There is no transition back.
type state int

const (
	statePrimary state = iota
	stateFallback
)

// Store is the process-wide credential store. Safe for concurrent use;
// last-write-wins per key. The mutex guards state and the fallback map only,
// never a keychain round-trip.
type Store struct {
	ring   Keyring
	logger *slog.Logger

	mu       sync.RWMutex
	state    state
	fallback map[string]string

	degradations prometheus.Counter
}

// Option configures a Store.
type Option func(*Store)

// WithKeyring substitutes the OS keyring. Used by tests.
func WithKeyring(ring Keyring) Option {
	return func(s *Store) { s.ring = ring }
}

// WithDegradationCounter records primary-to-fallback transitions.
func WithDegradationCounter(c prometheus.Counter) Option {
	return func(s *Store) { s.degradations = c }
}

// New probes the OS keychain and builds the store. In networked mode an
// unavailable keychain is fatal: durability and encryption guarantees cannot
// be met, so the process must not start. In local mode the store logs a
// warning and starts degraded.
func New(networked bool, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		ring:     osKeyring{},
		logger:   logger,
		fallback: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.ring.Get(serviceName, probeEntry); err != nil && !IsNotFound(err) {
		if networked {
			return nil, ErrUnavailable
		}
		logger.Warn("OS keychain unavailable; secrets will be stored in memory only", "error", err)
		s.state = stateFallback
	}

	return s, nil
}

// Degraded reports whether the store has fallen back to in-memory storage.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateFallback
}

// Get returns the named secret. Keychain errors are swallowed: the fallback
// map is consulted next, and a missing entry reports absent. Never errors.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	primary := s.state == statePrimary
	s.mu.RUnlock()

	if primary {
		if value, err := s.ring.Get(serviceName, name); err == nil {
			return value, true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.fallback[name]
	return value, ok
}

// Set stores the named secret, overwriting any existing entry. A keychain
// write failure transitions the store to fallback permanently so the
// degradation is observable instead of silently retried per call.
func (s *Store) Set(name, value string) {
	s.mu.RLock()
	primary := s.state == statePrimary
	s.mu.RUnlock()

	if primary {
		if err := s.ring.Set(serviceName, name, value); err == nil {
			return
		} else {
			s.degrade(err)
		}
	}

	s.mu.Lock()
	s.fallback[name] = value
	s.mu.Unlock()
}

// Delete removes the named secret from the keychain when available, and
// always from the fallback map. No-op if absent.
func (s *Store) Delete(name string) {
	s.mu.RLock()
	primary := s.state == statePrimary
	s.mu.RUnlock()

	if primary {
		// Errors here are not a degradation signal: the entry may simply
		// not exist.
		_ = s.ring.Delete(serviceName, name)
	}

	s.mu.Lock()
	delete(s.fallback, name)
	s.mu.Unlock()
}

// degrade moves the store to fallback state, once.
func (s *Store) degrade(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateFallback {
		return
	}
	s.state = stateFallback
	s.logger.Warn("keychain write failed; degrading to in-memory secret storage", "error", cause)
	if s.degradations != nil {
		s.degradations.Inc()
	}
}
