package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/api/middleware"
	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/policy"
	"github.com/99minutos/backoffice-console/internal/core/service"
)

func signedInSessions(t *testing.T, identity domain.Identity) *service.Sessions {
	t.Helper()
	sessions := newSessions(&stubBackend{}, nil)
	console := sessions.Open(context.Background(), consoleID)
	err := console.Store.Commit(context.Background(), domain.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf",
		Identity:     identity,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	sessions.Release(console)
	return sessions
}

// guarded runs h behind the Console and Guard middleware the way the router
// mounts it.
func guarded(sessions *service.Sessions, c echo.Context, required []domain.Role, h echo.HandlerFunc) error {
	return withConsole(sessions, middleware.Guard(required, nil)(h))(c)
}

func TestConsoleHandler_Landing(t *testing.T) {
	handler := NewConsoleHandler()

	anon := newSessions(&stubBackend{}, nil)
	c, rec := newRequest(http.MethodGet, "/", "")
	if err := withConsole(anon, handler.Landing)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp screenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Screen != "landing" || resp.User != nil || len(resp.Links) != 0 {
		t.Fatalf("unexpected anonymous landing: %+v", resp)
	}

	signed := signedInSessions(t, domain.Identity{ID: "u1", Role: domain.RoleHR})
	c, rec = newRequest(http.MethodGet, "/", "")
	if err := withConsole(signed, handler.Landing)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp = screenResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User == nil || len(resp.Links) == 0 {
		t.Fatalf("expected identity and navigation, got %+v", resp)
	}
}

func TestConsoleHandler_LoginPage_FromIsSanitized(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "local path", target: "/login?from=%2Ffinance", want: "/finance"},
		{name: "absent", target: "/login", want: ""},
		{name: "absolute url", target: "/login?from=https%3A%2F%2Fevil.example", want: ""},
		{name: "protocol relative", target: "/login?from=%2F%2Fevil.example", want: ""},
		{name: "backslash", target: "/login?from=%2F%5Cevil.example", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newSessions(&stubBackend{}, nil)
			c, rec := newRequest(http.MethodGet, tt.target, "")
			if err := withConsole(sessions, NewConsoleHandler().LoginPage)(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var resp loginPageResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.From != tt.want {
				t.Fatalf("expected from %q, got %q", tt.want, resp.From)
			}
			if resp.Stage != domain.StageIdle {
				t.Fatalf("expected idle stage, got %s", resp.Stage)
			}
		})
	}
}

func TestConsoleHandler_LoginPage_SignedInGoesToDashboard(t *testing.T) {
	sessions := signedInSessions(t, domain.Identity{ID: "u1", Role: domain.RoleBoss})
	c, rec := newRequest(http.MethodGet, "/login", "")
	if err := withConsole(sessions, NewConsoleHandler().LoginPage)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get(echo.HeaderLocation) != policy.DashboardPath {
		t.Fatalf("expected 303 to dashboard, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestConsoleHandler_Dashboard_RoutesByRole(t *testing.T) {
	tests := []struct {
		identity domain.Identity
		want     string
	}{
		{identity: domain.Identity{ID: "u1", Role: domain.RoleBoss}, want: "/boss"},
		{identity: domain.Identity{ID: "u2", Role: domain.RoleManager}, want: "/manager"},
		{identity: domain.Identity{ID: "u3", Role: domain.RoleHR}, want: "/hr"},
		{identity: domain.Identity{ID: "u4", Role: domain.RoleAdmin}, want: "/admin"},
		{identity: domain.Identity{ID: "u5", Role: domain.RoleLogistics}, want: "/logistics"},
		{identity: domain.Identity{ID: "u6", Role: domain.RoleSales, BranchID: "b7"}, want: "/sales/b7"},
		{identity: domain.Identity{ID: "u7", Role: domain.RoleStock}, want: "/"},
	}

	for _, tt := range tests {
		t.Run(string(tt.identity.Role), func(t *testing.T) {
			sessions := signedInSessions(t, tt.identity)
			c, rec := newRequest(http.MethodGet, "/dashboard", "")
			if err := guarded(sessions, c, nil, NewConsoleHandler().Dashboard); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", rec.Code)
			}
			if got := rec.Header().Get(echo.HeaderLocation); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConsoleHandler_Screen(t *testing.T) {
	finance, ok := policy.Lookup("finance")
	if !ok {
		t.Fatalf("finance feature missing")
	}
	sessions := signedInSessions(t, domain.Identity{ID: "u1", Role: domain.RoleManager})

	c, rec := newRequest(http.MethodGet, "/finance", "")
	if err := guarded(sessions, c, finance.Roles, NewConsoleHandler().Screen(finance)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp screenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Screen != "finance" || resp.Title != finance.Label || resp.User == nil || resp.User.ID != "u1" {
		t.Fatalf("unexpected screen: %+v", resp)
	}
}

func TestConsoleHandler_Screen_BranchScoped(t *testing.T) {
	sales, ok := policy.Lookup("sales")
	if !ok {
		t.Fatalf("sales feature missing")
	}

	tests := []struct {
		name     string
		branch   string
		wantCode int
	}{
		{name: "own branch", branch: "b7", wantCode: http.StatusOK},
		{name: "other branch", branch: "b8", wantCode: http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := signedInSessions(t, domain.Identity{ID: "u1", Role: domain.RoleSales, BranchID: "b7"})
			c, rec := newRequest(http.MethodGet, "/sales/"+tt.branch, "")
			c.SetParamNames("branchId")
			c.SetParamValues(tt.branch)

			if err := guarded(sessions, c, sales.Roles, NewConsoleHandler().Screen(sales)); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode == http.StatusOK {
				var resp screenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if resp.Params["branchId"] != "b7" {
					t.Fatalf("unexpected params: %v", resp.Params)
				}
			}
		})
	}
}

func TestConsoleHandler_MissingConsole(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := NewConsoleHandler().Landing(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
}
