package sessions

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the single source of truth for the current session. It keeps the session in memory
// and writes the whole value to Storage on every mutation. A Store is safe for concurrent use.
//
// Subscribers run synchronously after each mutation and must not call Login, Refresh or Logout.
type Store struct {
	storage Storage
	key     string
	logger  zerolog.Logger

	writeLock sync.Mutex // serialises mutate, persist and notify
	lock      sync.RWMutex
	session   Session

	subLock     sync.Mutex
	subscribers map[int]func(Session)
	nextSubID   int
}

type StoreOption func(*Store)

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithStorageKey overrides StorageKey, e.g. to keep sessions for several API hosts apart.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// NewStore creates an empty store over storage. Call Load to rehydrate a persisted session.
func NewStore(storage Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage:     storage,
		key:         StorageKey,
		logger:      log.Logger,
		subscribers: make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted session and makes it current. Missing, unreadable, corrupt or
// inconsistent data yields the empty session. Load never fails.
func (s *Store) Load() Session {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	loaded := s.readPersisted()

	s.lock.Lock()
	s.session = loaded
	s.lock.Unlock()

	return loaded.clone()
}

func (s *Store) readPersisted() Session {
	raw, ok, err := s.storage.Get(s.key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Session storage unreadable, starting logged out")
		return Session{}
	}
	if !ok || raw == "" {
		return Session{}
	}

	var stored Session
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Stored session is not valid JSON, starting logged out")
		return Session{}
	}
	if !stored.consistent() {
		s.logger.Warn().Err(errors.ErrSessionCorrupt).Str("key", s.key).Msg("Stored session is inconsistent, starting logged out")
		return Session{}
	}
	return stored
}

// Current returns a copy of the in-memory session. It never blocks on storage.
func (s *Store) Current() Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.session.clone()
}

// Login replaces the whole session.
func (s *Store) Login(user *users.User, accessToken, refreshToken string) error {
	if err := user.Validate(); err != nil {
		return errors.Wrapf(errors.ErrInvalidSession, "[Store Login] %s", err.Error())
	}
	if accessToken == "" {
		return fmt.Errorf("[Store Login] access token is required: %w", errors.ErrInvalidSession)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	next := Session{
		User:         user.Clone(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	s.commit(next)
	s.logger.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("Session started")
	return nil
}

// Refresh replaces the token pair and keeps the user, so the role never changes mid-session.
// spent is the refresh token that was exchanged for the new pair; when the current session no
// longer holds it (a new login, or another refresh landed first) nothing changes and
// ErrSessionChanged is returned.
func (s *Store) Refresh(spent, accessToken, refreshToken string) error {
	if accessToken == "" {
		return fmt.Errorf("[Store Refresh] access token is required: %w", errors.ErrInvalidSession)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.lock.RLock()
	current := s.session
	s.lock.RUnlock()

	if !current.IsAuthenticated() {
		return fmt.Errorf("[Store Refresh] %w", errors.ErrNoSession)
	}
	if current.RefreshToken != spent {
		return fmt.Errorf("[Store Refresh] %w", errors.ErrSessionChanged)
	}

	next := Session{
		User:         current.User,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	s.commit(next)
	s.logger.Debug().Str("user_id", current.User.ID.String()).Msg("Session tokens refreshed")
	return nil
}

// Logout clears the session and its persisted value. Logging out twice is a no-op.
func (s *Store) Logout() {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.lock.RLock()
	wasEmpty := s.session.IsEmpty()
	s.lock.RUnlock()

	if err := s.storage.Remove(s.key); err != nil {
		s.logger.Err(err).Str("key", s.key).Msg("Failed to remove persisted session")
	}
	if wasEmpty {
		return
	}

	s.lock.Lock()
	s.session = Session{}
	s.lock.Unlock()

	s.logger.Info().Msg("Session ended")
	s.notify(Session{})
}

// Subscribe registers fn to be called with the new session after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.subLock.Lock()
	defer s.subLock.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		delete(s.subscribers, id)
	}
}

// commit persists next, then makes it current and notifies. A failed write is logged and the
// in-memory session still changes; the worst case is a re-login after restart.
// Callers hold writeLock.
func (s *Store) commit(next Session) {
	if err := s.persist(next); err != nil {
		s.logger.Err(err).Str("key", s.key).Msg("Failed to persist session")
	}

	s.lock.Lock()
	s.session = next
	s.lock.Unlock()

	s.notify(next)
}

func (s *Store) persist(session Session) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[Store persist] marshal session: %w", err)
	}
	if err := s.storage.Set(s.key, string(b)); err != nil {
		return fmt.Errorf("[Store persist] %w", err)
	}
	return nil
}

func (s *Store) notify(session Session) {
	s.subLock.Lock()
	fns := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subLock.Unlock()

	for _, fn := range fns {
		fn(session.clone())
	}
}
