// Package session owns the console's notion of "who is signed in": the
// in-memory identity, its persisted credentials and the idle timer that
// invalidates them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultAccessTTL   = time.Hour
	DefaultRefreshTTL  = 7 * 24 * time.Hour

	// ExpiredNotice is shown once after the idle timer tore the session down.
	ExpiredNotice = "Your session has expired due to inactivity. Please sign in again."

	expiryClearTimeout = 5 * time.Second
)

// Options configures a Store. Zero values fall back to the defaults above.
type Options struct {
	IdleTimeout time.Duration
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	Clock       Clock
	// OnExpire runs after an idle expiry has cleared the session.
	OnExpire func(domain.Identity)
	// OnCorrupt runs when Restore discards an unreadable persisted session.
	OnCorrupt func(reason string)
}

// Store is the single source of truth for the signed-in identity of one
// console session. Commit and Clear are the only writers of its persisted
// fields.
type Store struct {
	persist ports.SessionPersistence
	opts    Options
	log     zerolog.Logger

	mu       sync.Mutex
	loading  bool
	identity *domain.Identity
	csrf     string
	timer    *idleTimer
	gen      uint64
	notice   string
}

// NewStore returns a store that reports Loading until Restore resolves.
func NewStore(persist ports.SessionPersistence, opts Options, log zerolog.Logger) *Store {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Store{persist: persist, opts: opts, log: log, loading: true}
}

// Restore rehydrates the identity from persistence. A missing or unreadable
// session is cleared silently. A persistence transport error leaves the
// store loading so the caller can retry. Once resolved, further calls are
// no-ops.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		return nil
	}

	rec, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	identity, err := decodeRecord(rec)
	if err != nil {
		if errors.Is(err, domain.ErrSessionCorrupt) {
			s.log.Warn().Err(err).Msg("discarding corrupt persisted session")
			if s.opts.OnCorrupt != nil {
				s.opts.OnCorrupt(err.Error())
			}
		}
		if clearErr := s.clearLocked(ctx); clearErr != nil {
			s.log.Warn().Err(clearErr).Msg("failed to remove persisted session")
		}
		return nil
	}

	s.identity = &identity
	s.csrf = rec.CSRFToken
	s.loading = false
	s.armLocked()
	return nil
}

// Commit persists sess atomically, replaces the in-memory identity and
// re-arms the idle timer. On failure the store is left as it was.
func (s *Store) Commit(ctx context.Context, sess domain.Session) error {
	if !sess.Complete() {
		return domain.ErrIncompleteSession
	}
	user, err := json.Marshal(sess.Identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := ports.SessionRecord{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		User:         string(user),
		CSRFToken:    sess.CSRFToken,
	}
	if err := s.persist.Save(ctx, rec, s.ttl(sess.AccessExpiresAt)); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	identity := sess.Identity
	s.identity = &identity
	s.csrf = sess.CSRFToken
	s.loading = false
	s.notice = ""
	s.armLocked()
	return nil
}

// Clear tears the session down. It is idempotent. The in-memory state is
// always reset; the returned error only reports a failed persistence delete.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Identity returns the signed-in identity, if any.
func (s *Store) Identity() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Loading reports whether Restore has not resolved yet.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// CSRFToken returns the anti-forgery token of the current session.
func (s *Store) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrf
}

// TakeNotice returns and forgets the pending user-facing notice.
func (s *Store) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notice
	s.notice = ""
	return n
}

// HasNotice reports whether a notice is waiting to be shown.
func (s *Store) HasNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice != ""
}

// Armed reports whether an idle timer is live.
func (s *Store) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.disarmLocked()
	s.identity = nil
	s.csrf = ""
	s.loading = false
	if err := s.persist.Delete(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) armLocked() {
	s.disarmLocked()
	s.gen++
	gen := s.gen
	s.timer = &idleTimer{
		gen:   gen,
		timer: s.opts.Clock.AfterFunc(s.opts.IdleTimeout, func() { s.expire(gen) }),
	}
}

func (s *Store) disarmLocked() {
	s.timer.cancel()
	s.timer = nil
}

func (s *Store) expire(gen uint64) {
	s.mu.Lock()
	if s.timer == nil || s.timer.gen != gen || s.identity == nil {
		s.mu.Unlock()
		return
	}
	identity := *s.identity

	ctx, cancel := context.WithTimeout(context.Background(), expiryClearTimeout)
	defer cancel()
	if err := s.clearLocked(ctx); err != nil {
		s.log.Warn().Err(err).Str("user_id", identity.ID).Msg("idle expiry could not remove persisted session")
	}
	s.notice = ExpiredNotice
	s.mu.Unlock()

	s.log.Info().Str("user_id", identity.ID).Dur("idle_timeout", s.opts.IdleTimeout).Msg("session expired")
	if s.opts.OnExpire != nil {
		s.opts.OnExpire(identity)
	}
}

func (s *Store) ttl(accessExpiresAt time.Time) ports.SessionTTL {
	access := s.opts.AccessTTL
	if !accessExpiresAt.IsZero() {
		if until := accessExpiresAt.Sub(s.opts.Clock.Now()); until > 0 && until < access {
			access = until
		}
	}
	return ports.SessionTTL{Access: access, Refresh: s.opts.RefreshTTL}
}

// decodeRecord returns the identity of a complete record. An empty record is
// reported as plain absence; a partial or unparseable one as corruption.
func decodeRecord(rec ports.SessionRecord) (domain.Identity, error) {
	if rec.Empty() {
		return domain.Identity{}, errNoSession
	}
	if rec.AccessToken == "" || rec.User == "" {
		// The refresh token outlives the others; on its own it is an
		// expired session, not a corrupt one.
		if rec.RefreshToken != "" && rec.AccessToken == "" && rec.User == "" && rec.CSRFToken == "" {
			return domain.Identity{}, errNoSession
		}
		return domain.Identity{}, fmt.Errorf("%w: missing access token or identity", domain.ErrSessionCorrupt)
	}
	if rec.RefreshToken == "" || rec.CSRFToken == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing refresh or anti-forgery token", domain.ErrSessionCorrupt)
	}

	var identity domain.Identity
	if err := json.Unmarshal([]byte(rec.User), &identity); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: identity: %v", domain.ErrSessionCorrupt, err)
	}
	if !identity.WellFormed() {
		return domain.Identity{}, fmt.Errorf("%w: identity lacks id or role", domain.ErrSessionCorrupt)
	}
	return identity, nil
}

var errNoSession = errors.New("no persisted session")
