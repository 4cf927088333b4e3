package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/api/middleware"
	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/internal/core/session"
)

type stubBackend struct {
	loginFn        func(ctx context.Context, email, password string) (*ports.LoginResponse, error)
	setupFn        func(ctx context.Context, userID string) (*ports.MFASetupResponse, error)
	verifyFn       func(ctx context.Context, userID, code string) error
	loginWithMFAFn func(ctx context.Context, email, password, code string) (*ports.LoginResponse, error)
	registerFn     func(ctx context.Context, fullName, email, password string) error
}

func (b *stubBackend) Login(ctx context.Context, email, password string) (*ports.LoginResponse, error) {
	return b.loginFn(ctx, email, password)
}

func (b *stubBackend) SetupMFA(ctx context.Context, userID string) (*ports.MFASetupResponse, error) {
	return b.setupFn(ctx, userID)
}

func (b *stubBackend) VerifyMFA(ctx context.Context, userID, code string) error {
	return b.verifyFn(ctx, userID, code)
}

func (b *stubBackend) LoginWithMFA(ctx context.Context, email, password, code string) (*ports.LoginResponse, error) {
	return b.loginWithMFAFn(ctx, email, password, code)
}

func (b *stubBackend) Register(ctx context.Context, fullName, email, password string) error {
	return b.registerFn(ctx, fullName, email, password)
}

type memPersistence struct {
	mu  sync.Mutex
	rec ports.SessionRecord
}

func (p *memPersistence) Load(context.Context) (ports.SessionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, nil
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

// manualClock keeps the last scheduled callback so a test can fire it.
type manualClock struct {
	mu   sync.Mutex
	last func()
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = f
	return stoppedTimer{}
}

func (c *manualClock) Now() time.Time { return time.Now() }

func (c *manualClock) fire() {
	c.mu.Lock()
	f := c.last
	c.mu.Unlock()
	f()
}

func newSessions(backend ports.AuthBackend, clock session.Clock) *service.Sessions {
	return service.NewSessions(service.SessionsOptions{
		Store:          session.Options{Clock: clock},
		NewPersistence: func(string) ports.SessionPersistence { return &memPersistence{} },
		Backend:        backend,
	}, zerolog.Nop())
}

func successResponse(identity domain.Identity) *ports.LoginResponse {
	return &ports.LoginResponse{
		Success:      true,
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf",
		User:         &identity,
	}
}

// newRequest builds an echo context carrying the console cookie for consoleID.
func newRequest(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: "console_sid", Value: consoleID})
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// withConsole runs h behind the Console middleware the way the router mounts it.
func withConsole(sessions *service.Sessions, h echo.HandlerFunc) echo.HandlerFunc {
	return middleware.Console(sessions, middleware.CookieConfig{Name: "console_sid"})(h)
}

const consoleID = "6f1c1f4e-8a53-4e53-9a43-3c2a0a3f4b10"
