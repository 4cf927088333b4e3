package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/internal/core/session"
)

type memPersistence struct {
	mu      sync.Mutex
	rec     ports.SessionRecord
	loadErr error
}

func (p *memPersistence) Load(context.Context) (ports.SessionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, p.loadErr
}

func (p *memPersistence) Save(_ context.Context, rec ports.SessionRecord, _ ports.SessionTTL) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = rec
	return nil
}

func (p *memPersistence) Delete(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = ports.SessionRecord{}
	return nil
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return true }

type idleClock struct{}

func (idleClock) AfterFunc(time.Duration, func()) session.Timer { return stoppedTimer{} }

func (idleClock) Now() time.Time { return time.Now() }

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(ev domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

// noBackend fails the test on any call; middleware never talks to it.
type noBackend struct{ t *testing.T }

func (b noBackend) Login(context.Context, string, string) (*ports.LoginResponse, error) {
	b.t.Fatalf("unexpected backend call")
	return nil, nil
}

func (b noBackend) SetupMFA(context.Context, string) (*ports.MFASetupResponse, error) {
	b.t.Fatalf("unexpected backend call")
	return nil, nil
}

func (b noBackend) VerifyMFA(context.Context, string, string) error {
	b.t.Fatalf("unexpected backend call")
	return nil
}

func (b noBackend) LoginWithMFA(context.Context, string, string, string) (*ports.LoginResponse, error) {
	b.t.Fatalf("unexpected backend call")
	return nil, nil
}

func (b noBackend) Register(context.Context, string, string, string) error {
	b.t.Fatalf("unexpected backend call")
	return nil
}

// fixture is a registry with in-memory persistence per console. loadErr is
// handed to consoles created after it is set.
type fixture struct {
	sessions *service.Sessions
	loadErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.sessions = service.NewSessions(service.SessionsOptions{
		Store: session.Options{Clock: idleClock{}},
		NewPersistence: func(string) ports.SessionPersistence {
			return &memPersistence{loadErr: f.loadErr}
		},
		Backend: noBackend{t: t},
	}, zerolog.Nop())
	return f
}

// signIn commits a session for identity on console id and returns it.
func (f *fixture) signIn(t *testing.T, id string, identity domain.Identity) *service.Console {
	t.Helper()
	console := f.sessions.Open(context.Background(), id)
	err := console.Store.Commit(context.Background(), domain.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf-" + id,
		Identity:     identity,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	f.sessions.Release(console)
	return console
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}
