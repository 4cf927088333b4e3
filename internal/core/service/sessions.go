package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/internal/core/session"
)

// DefaultConsoleIdleTTL is how long a console that is not signed in survives
// without requests.
const DefaultConsoleIdleTTL = 15 * time.Minute

// Console is everything one browser session owns: its session store (with
// the idle timer inside) and its login flow.
type Console struct {
	ID    string
	Store *session.Store
	Flow  *AuthFlow

	// guarded by Sessions.mu
	active   int
	lastSeen time.Time
}

// disposable reports whether the console can be forgotten without losing
// anything: a later request rebuilds it from persistence.
func (c *Console) disposable() bool {
	if _, signedIn := c.Store.Identity(); signedIn {
		return false
	}
	return !c.Store.HasNotice() && c.Flow.Idle()
}

// SessionsOptions wires the collaborators of every console.
type SessionsOptions struct {
	Store          session.Options
	NewPersistence func(consoleID string) ports.SessionPersistence
	Backend        ports.AuthBackend
	Audit          ports.AuditRecorder
	// OnExpire runs after a console's idle timer cleared its session.
	OnExpire func(consoleID string, identity domain.Identity)
	// IdleTTL evicts consoles that are not signed in after this long without
	// requests. Signed-in consoles leave through their idle timer or logout.
	IdleTTL time.Duration
}

// Sessions is the registry of live consoles keyed by console-session id.
type Sessions struct {
	opts SessionsOptions
	log  zerolog.Logger

	clock session.Clock

	mu       sync.Mutex
	consoles map[string]*Console
	sweptAt  time.Time
}

func NewSessions(opts SessionsOptions, log zerolog.Logger) *Sessions {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultConsoleIdleTTL
	}
	clock := opts.Store.Clock
	if clock == nil {
		clock = session.SystemClock{}
	}
	return &Sessions{
		opts:     opts,
		log:      log,
		clock:    clock,
		consoles: make(map[string]*Console),
		sweptAt:  clock.Now(),
	}
}

// Open returns the console for id, creating it on first sight. While its
// store is still loading, every Open retries the restore. Each Open should be
// paired with a Release once the request is done.
func (s *Sessions) Open(ctx context.Context, id string) *Console {
	s.mu.Lock()
	now := s.clock.Now()
	s.sweepLocked(now)
	c, ok := s.consoles[id]
	if !ok {
		c = s.newConsole(id)
		s.consoles[id] = c
	}
	c.active++
	c.lastSeen = now
	s.mu.Unlock()

	if c.Store.Loading() {
		if err := c.Store.Restore(ctx); err != nil {
			s.log.Warn().Err(err).Str("console_id", id).Msg("session restore deferred")
		}
	}
	return c
}

// Release ends a request on c. A console left with nothing worth keeping is
// forgotten at once.
func (s *Sessions) Release(c *Console) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.active > 0 {
		c.active--
	}
	c.lastSeen = s.clock.Now()
	if c.active == 0 && s.consoles[c.ID] == c && c.disposable() {
		delete(s.consoles, c.ID)
	}
}

// sweepLocked evicts consoles that are not signed in and were not seen for
// IdleTTL. It runs at most once per IdleTTL.
func (s *Sessions) sweepLocked(now time.Time) {
	if now.Sub(s.sweptAt) < s.opts.IdleTTL {
		return
	}
	s.sweptAt = now
	for id, c := range s.consoles {
		if c.active > 0 || now.Sub(c.lastSeen) < s.opts.IdleTTL {
			continue
		}
		if _, signedIn := c.Store.Identity(); signedIn {
			continue
		}
		c.Flow.Abandon()
		delete(s.consoles, id)
	}
}

// Drop forgets a console. Its store must already be cleared.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consoles, id)
}

// Len reports the number of live consoles.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consoles)
}

func (s *Sessions) newConsole(id string) *Console {
	log := s.log.With().Str("console_id", id).Logger()

	opts := s.opts.Store
	opts.OnExpire = func(identity domain.Identity) {
		s.record(domain.AuthEvent{SessionID: id, UserID: identity.ID, Role: identity.Role, Kind: domain.EventSessionExpired})
		if s.opts.OnExpire != nil {
			s.opts.OnExpire(id, identity)
		}
	}
	opts.OnCorrupt = func(reason string) {
		s.record(domain.AuthEvent{SessionID: id, Kind: domain.EventSessionCorrupt, Detail: reason})
	}

	store := session.NewStore(s.opts.NewPersistence(id), opts, log)
	return &Console{
		ID:    id,
		Store: store,
		Flow:  NewAuthFlow(id, s.opts.Backend, store, s.opts.Audit, log),
	}
}

func (s *Sessions) record(ev domain.AuthEvent) {
	if s.opts.Audit == nil {
		return
	}
	ev.At = time.Now().UTC()
	s.opts.Audit.Record(ev)
}
