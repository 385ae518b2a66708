package grants

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dwizi/group-warden/internal/warderr"
)

var ErrInvalidDuration = warderr.Validation("grant duration must be positive")

// Key identifies a member inside a chat.
type Key struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type Grant struct {
	Key
	ExpiresAt time.Time `json:"expires_at"`
}

// Persister mirrors grant mutations into durable storage.
type Persister interface {
	SaveGrant(ctx context.Context, grant Grant) error
	DeleteGrant(ctx context.Context, key Key) error
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(store *Store) {
		if now != nil {
			store.now = now
		}
	}
}

func WithPersister(persister Persister, logger *slog.Logger) Option {
	return func(store *Store) {
		store.persister = persister
		if logger != nil {
			store.logger = logger
		}
	}
}

// Store is the in-memory source of truth for temporary posting grants.
// At most one grant exists per key; granting again overwrites the expiry.
type Store struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex // orders persistence the same way as in-memory mutations
	grants    map[Key]time.Time
	now       func() time.Time
	persister Persister
	logger    *slog.Logger
}

func New(opts ...Option) *Store {
	store := &Store{
		grants: map[Key]time.Time{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *Store) Grant(chatID, userID int64, duration time.Duration) (Grant, error) {
	if duration <= 0 {
		return Grant{}, ErrInvalidDuration
	}
	key := Key{ChatID: chatID, UserID: userID}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	expiresAt := s.now().UTC().Add(duration)
	s.grants[key] = expiresAt
	s.mu.Unlock()

	grant := Grant{Key: key, ExpiresAt: expiresAt}
	s.persistSave(grant)
	return grant, nil
}

func (s *Store) Revoke(chatID, userID int64) bool {
	key := Key{ChatID: chatID, UserID: userID}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	_, exists := s.grants[key]
	delete(s.grants, key)
	s.mu.Unlock()

	if exists {
		s.persistDelete(key)
	}
	return exists
}

// RevokeExpired removes the grant only while it is still expired at now, so
// a re-approval that raced with a sweep survives it.
func (s *Store) RevokeExpired(chatID, userID int64, now time.Time) bool {
	key := Key{ChatID: chatID, UserID: userID}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	expiresAt, exists := s.grants[key]
	removed := exists && !expiresAt.After(now)
	if removed {
		delete(s.grants, key)
	}
	s.mu.Unlock()

	if removed {
		s.persistDelete(key)
	}
	return removed
}

// ListExpired returns a copy of every key whose expiry is at or before now,
// oldest first.
func (s *Store) ListExpired(now time.Time) []Key {
	s.mu.RLock()
	expired := make([]Grant, 0)
	for key, expiresAt := range s.grants {
		if !expiresAt.After(now) {
			expired = append(expired, Grant{Key: key, ExpiresAt: expiresAt})
		}
	}
	s.mu.RUnlock()

	sortGrants(expired)
	keys := make([]Key, 0, len(expired))
	for _, grant := range expired {
		keys = append(keys, grant.Key)
	}
	return keys
}

func (s *Store) Has(chatID, userID int64) bool {
	_, ok := s.Lookup(chatID, userID)
	return ok
}

func (s *Store) Lookup(chatID, userID int64) (Grant, bool) {
	key := Key{ChatID: chatID, UserID: userID}
	s.mu.RLock()
	expiresAt, ok := s.grants[key]
	s.mu.RUnlock()
	if !ok {
		return Grant{}, false
	}
	return Grant{Key: key, ExpiresAt: expiresAt}, true
}

// List returns every grant, or only the grants of chatID when it is non-zero.
func (s *Store) List(chatID int64) []Grant {
	s.mu.RLock()
	items := make([]Grant, 0, len(s.grants))
	for key, expiresAt := range s.grants {
		if chatID != 0 && key.ChatID != chatID {
			continue
		}
		items = append(items, Grant{Key: key, ExpiresAt: expiresAt})
	}
	s.mu.RUnlock()
	sortGrants(items)
	return items
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}

// Restore loads grants read back from durable storage. Existing entries with
// a later expiry win so a restore never shortens a live grant.
func (s *Store) Restore(items []Grant) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, item := range items {
		if item.ExpiresAt.IsZero() {
			continue
		}
		if current, ok := s.grants[item.Key]; ok && current.After(item.ExpiresAt) {
			continue
		}
		s.grants[item.Key] = item.ExpiresAt.UTC()
		restored++
	}
	return restored
}

func (s *Store) Now() time.Time {
	return s.now().UTC()
}

func (s *Store) persistSave(grant Grant) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.persister.SaveGrant(ctx, grant); err != nil {
		s.logger.Error("persist grant failed", "error", err, "chat_id", grant.ChatID, "user_id", grant.UserID)
	}
}

func (s *Store) persistDelete(key Key) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.persister.DeleteGrant(ctx, key); err != nil {
		s.logger.Error("delete persisted grant failed", "error", err, "chat_id", key.ChatID, "user_id", key.UserID)
	}
}

func sortGrants(items []Grant) {
	sort.Slice(items, func(left, right int) bool {
		if !items[left].ExpiresAt.Equal(items[right].ExpiresAt) {
			return items[left].ExpiresAt.Before(items[right].ExpiresAt)
		}
		if items[left].ChatID != items[right].ChatID {
			return items[left].ChatID < items[right].ChatID
		}
		return items[left].UserID < items[right].UserID
	})
}
