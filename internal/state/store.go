package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a stored payload stays retrievable.
const DefaultTTL = time.Hour

var (
	// ErrNotFound is returned for ids that were never issued, already taken, or expired.
	ErrNotFound = errors.New("state not found or expired")
	// ErrMissingID is returned when Take is called without an id.
	ErrMissingID = errors.New("missing state id")
	// ErrMissingPayload is returned when Put is called with an empty payload.
	ErrMissingPayload = errors.New("missing payload")
	// ErrInvalidPayload is returned when Put is called with bytes that are not JSON.
	ErrInvalidPayload = errors.New("payload is not valid JSON")
)

type entry struct {
	payload   json.RawMessage
	expiresAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source. Tests use it to move past expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithLogger sets the logger used for store events. Payloads are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is an in-memory, one-time-read key/value map with per-entry expiry.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// NewStore creates an empty store with DefaultTTL.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a compacted copy of payload and returns the id that retrieves it.
func (s *Store) Put(payload json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", ErrMissingPayload
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", ErrInvalidPayload
	}
	if isEmptyPayload(compact.Bytes()) {
		return "", ErrMissingPayload
	}

	e := entry{
		payload: json.RawMessage(compact.Bytes()),
	}

	s.mu.Lock()
	id := s.newID()
	for {
		if _, taken := s.entries[id]; !taken {
			break
		}
		id = s.newID()
	}
	e.expiresAt = s.now().Add(s.ttl)
	s.entries[id] = e
	s.mu.Unlock()

	s.logger.Debug("state stored", "state_id", id, "expires_at", e.expiresAt)
	return id, nil
}

// Take sweeps expired entries, then removes and returns the payload stored
// under id.
func (s *Store) Take(id string) (json.RawMessage, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	s.mu.Lock()
	swept := s.sweepLocked(s.now())
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if swept > 0 {
		s.logger.Debug("swept expired states", "count", swept)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.logger.Debug("state taken", "state_id", id)
	return e.payload, nil
}

// Len reports the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweepLocked removes every entry whose expiry is at or before now.
// Must be called with mu held.
func (s *Store) sweepLocked(now time.Time) int {
	n := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// isEmptyPayload reports whether a compacted JSON value carries nothing.
func isEmptyPayload(compact []byte) bool {
	switch string(compact) {
	case "null", "{}", "[]", `""`:
		return true
	}
	return false
}
