package credential

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/repository"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
)

const (
	keyToken        = "auth_token"
	keyUser         = "user"
	keyLastActivity = "last_activity"
)

// Store owns the persisted credential: token, user snapshot and last
// activity time, all under one key namespace. It holds no session policy.
//
// Storage failures never escape: they are logged, counted, and reported to
// the caller as an absent credential.
type Store struct {
	kv      repository.KeyValueStore
	ns      string
	logger  *slog.Logger
	now     func() time.Time
	ceiling time.Duration

	// mu orders the read-then-clear in IsLive against concurrent writes.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCeiling replaces the inactivity ceiling.
func WithCeiling(d time.Duration) Option {
	return func(s *Store) { s.ceiling = d }
}

// NewStore creates a credential store on kv. Every key is prefixed with namespace.
func NewStore(kv repository.KeyValueStore, namespace string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		ns:      namespace,
		logger:  logger,
		now:     time.Now,
		ceiling: domain.InactivityCeiling,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string { return s.ns + name }

// Write persists token and user together and starts the inactivity clock.
// It overwrites any previous credential.
func (s *Store) Write(ctx context.Context, token string, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(ctx, token, user)
}

// UpdateSnapshot replaces the cached user while keeping the stored token.
// It does nothing when no token is stored.
func (s *Store) UpdateSnapshot(ctx context.Context, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.readToken(ctx)
	if !ok {
		s.logger.WarnContext(ctx, "credential snapshot update skipped: no stored token")
		return
	}
	s.writeLocked(ctx, token, user)
}

func (s *Store) writeLocked(ctx context.Context, token string, user *domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		s.fail(ctx, "write", err)
		return
	}
	err = s.kv.SetMulti(ctx, map[string]string{
		s.key(keyToken):        token,
		s.key(keyUser):         string(data),
		s.key(keyLastActivity): s.stamp(),
	})
	if err != nil {
		s.fail(ctx, "write", err)
	}
}

// ReadToken returns the stored token, if any.
func (s *Store) ReadToken(ctx context.Context) (string, bool) {
	return s.readToken(ctx)
}

func (s *Store) readToken(ctx context.Context) (string, bool) {
	v, err := s.kv.Get(ctx, s.key(keyToken))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.fail(ctx, "read_token", err)
		}
		return "", false
	}
	return v, v != ""
}

// ReadUserSnapshot returns the cached user, or nil when none is stored or
// the snapshot cannot be decoded.
func (s *Store) ReadUserSnapshot(ctx context.Context) *domain.User {
	v, err := s.kv.Get(ctx, s.key(keyUser))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.fail(ctx, "read_user", err)
		}
		return nil
	}
	var u domain.User
	if err := json.Unmarshal([]byte(v), &u); err != nil {
		s.fail(ctx, "decode_user", err)
		return nil
	}
	return &u
}

// Touch records now as the last activity time. It writes nothing when no
// token is stored, and clears a credential that is already past the
// inactivity ceiling instead of extending it.
func (s *Store) Touch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readToken(ctx); !ok {
		return
	}
	last, present, err := s.lastActivity(ctx)
	if err != nil {
		s.fail(ctx, "read_activity", err)
		return
	}
	if present && s.expiredLocked(ctx, last) {
		return
	}
	s.touchLocked(ctx)
}

func (s *Store) touchLocked(ctx context.Context) {
	if err := s.kv.Set(ctx, s.key(keyLastActivity), s.stamp()); err != nil {
		s.fail(ctx, "touch", err)
	}
}

// expiredLocked clears the credential and reports true when last is older
// than the ceiling.
func (s *Store) expiredLocked(ctx context.Context, last time.Time) bool {
	idle := s.now().Sub(last)
	if idle <= s.ceiling {
		return false
	}
	Expirations.Inc()
	s.logger.InfoContext(ctx, "credential expired after inactivity",
		slog.Duration("idle", idle.Truncate(time.Second)),
		slog.Duration("ceiling", s.ceiling),
	)
	s.clearLocked(ctx)
	return true
}

// IsLive reports whether a token is stored and has seen activity within the
// inactivity ceiling. An expired credential is cleared before returning
// false, so a caller that only checks liveness still leaves storage
// consistent. A credential without an activity time counts as live and is
// touched on the spot. Use Peek for a check without side effects.
func (s *Store) IsLive(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readToken(ctx); !ok {
		return false
	}

	last, present, err := s.lastActivity(ctx)
	switch {
	case err != nil:
		s.fail(ctx, "read_activity", err)
		return false
	case !present:
		s.touchLocked(ctx)
		return true
	}
	return !s.expiredLocked(ctx, last)
}

// Peek describes the stored credential without modifying it.
func (s *Store) Peek(ctx context.Context) domain.Liveness {
	var l domain.Liveness
	_, l.HasToken = s.readToken(ctx)
	l.HasUser = s.ReadUserSnapshot(ctx) != nil

	last, present, err := s.lastActivity(ctx)
	if err != nil {
		s.fail(ctx, "read_activity", err)
		return l
	}
	if !present {
		l.Live = l.HasToken
		return l
	}

	idle := s.now().Sub(last)
	expires := last.Add(s.ceiling)
	l.LastActivity = &last
	l.ExpiresAt = &expires
	l.Idle = idle.Truncate(time.Second).String()
	l.Live = l.HasToken && idle <= s.ceiling
	return l
}

// Clear removes the credential and every other key under the namespace.
// It is idempotent.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) {
	keys := []string{s.key(keyToken), s.key(keyUser), s.key(keyLastActivity)}

	stray, err := s.kv.Keys(ctx, s.ns)
	if err != nil {
		s.fail(ctx, "list_keys", err)
	}
	for _, k := range stray {
		if k != keys[0] && k != keys[1] && k != keys[2] {
			keys = append(keys, k)
		}
	}

	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.fail(ctx, "clear", err)
	}
}

// Ping checks the backing medium.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// lastActivity reads the activity stamp. An unparseable stamp is reported
// as present and infinitely old so the credential expires.
func (s *Store) lastActivity(ctx context.Context) (time.Time, bool, error) {
	v, err := s.kv.Get(ctx, s.key(keyLastActivity))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid last activity stamp", slog.String("value", v))
		return time.UnixMilli(0), true, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *Store) stamp() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *Store) fail(ctx context.Context, op string, err error) {
	StoreErrors.WithLabelValues(op).Inc()
	s.logger.ErrorContext(ctx, "credential store failure",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
