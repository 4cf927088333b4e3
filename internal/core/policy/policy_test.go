package policy

import (
	"testing"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

func identityFor(role domain.Role) domain.Identity {
	return domain.Identity{ID: "u-" + string(role), FullName: "Test", Role: role, BranchID: "b7"}
}

func TestLanding(t *testing.T) {
	cases := map[domain.Role]string{
		domain.RoleBoss:      "/boss",
		domain.RoleManager:   "/manager",
		domain.RoleHR:        "/hr",
		domain.RoleAdmin:     "/admin",
		domain.RoleLogistics: "/logistics",
		domain.RoleSales:     "/sales/b7",
		domain.RoleStock:     PublicPath,
		"intern":             PublicPath,
	}
	for role, want := range cases {
		if got := Landing(identityFor(role)); got != want {
			t.Errorf("Landing(%s) = %q, want %q", role, got, want)
		}
	}
}

func TestLanding_SalesWithoutBranch(t *testing.T) {
	id := domain.Identity{ID: "u1", Role: domain.RoleSales}
	if got := Landing(id); got != PublicPath {
		t.Fatalf("expected public page, got %q", got)
	}
	for _, l := range Links(id) {
		if l.Key == "sales" {
			t.Fatalf("a sales identity without branch must not see the sales link")
		}
	}
}

// Every landing page must be one the role is allowed to open.
func TestLanding_IsAlwaysPermitted(t *testing.T) {
	for _, role := range domain.Roles {
		id := identityFor(role)
		landing := Landing(id)
		if landing == PublicPath {
			continue
		}
		found := false
		for _, f := range Features() {
			path, ok := f.Resolve(id)
			if !ok || path != landing {
				continue
			}
			found = true
			if !f.Allows(role) {
				t.Errorf("%s lands on %s but may not open it", role, landing)
			}
			if d := Decide(&id, false, f.Roles, landing); d.Verdict != Render {
				t.Errorf("%s landing %s is not rendered: %v", role, landing, d.Verdict)
			}
		}
		if !found {
			t.Errorf("%s lands on %s which is not a feature", role, landing)
		}
	}
}

// Navigation shows exactly the features the guard would render.
func TestLinks_MatchGuard(t *testing.T) {
	for _, role := range domain.Roles {
		id := identityFor(role)
		visible := map[string]bool{}
		for _, l := range Links(id) {
			visible[l.Key] = true
		}
		for _, f := range Features() {
			if !f.Nav {
				continue
			}
			rendered := Decide(&id, false, f.Roles, f.Path).Verdict == Render
			if visible[f.Key] != rendered {
				t.Errorf("role %s feature %s: link=%v render=%v", role, f.Key, visible[f.Key], rendered)
			}
		}
	}
}

func TestLinks_ResolvesBranch(t *testing.T) {
	for _, l := range Links(identityFor(domain.RoleSales)) {
		if l.Key == "sales" && l.Path != "/sales/b7" {
			t.Fatalf("expected resolved branch path, got %q", l.Path)
		}
	}
}

func TestFeatures_HomeAllowsItsRole(t *testing.T) {
	homes := map[domain.Role]int{}
	for _, f := range Features() {
		if f.Home == "" {
			continue
		}
		homes[f.Home]++
		if !f.Allows(f.Home) {
			t.Errorf("feature %s is home of %s but does not allow it", f.Key, f.Home)
		}
	}
	for role, n := range homes {
		if n != 1 {
			t.Errorf("role %s has %d home features", role, n)
		}
	}
}

func TestFeatures_ReturnsCopy(t *testing.T) {
	fs := Features()
	fs[0].Path = "/hijacked"
	fs[1].Roles[0] = domain.RoleSales

	if f, _ := Lookup(fs[0].Key); f.Path == "/hijacked" {
		t.Fatalf("Features must not expose the table")
	}
	if f, _ := Lookup("boss"); f.Allows(domain.RoleSales) {
		t.Fatalf("Features must not expose role slices")
	}
}

func TestDecide(t *testing.T) {
	boss := identityFor(domain.RoleBoss)
	sales := identityFor(domain.RoleSales)

	cases := []struct {
		name     string
		identity *domain.Identity
		loading  bool
		required []domain.Role
		want     Decision
	}{
		{"loading wins over everything", &boss, true, nil, Decision{Verdict: Wait}},
		{"loading without identity", nil, true, bossOnly, Decision{Verdict: Wait}},
		{"anonymous", nil, false, bossOnly, Decision{Verdict: RedirectLogin, Location: "/login?from=%2Fboss"}},
		{"wrong role", &sales, false, bossOnly, Decision{Verdict: RedirectDashboard, Location: DashboardPath}},
		{"permitted", &boss, false, bossOnly, Decision{Verdict: Render}},
		{"any role", &sales, false, nil, Decision{Verdict: Render}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.identity, tc.loading, tc.required, "/boss"); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestLoginRedirect(t *testing.T) {
	cases := map[string]string{
		"":                   LoginPath,
		LoginPath:            LoginPath,
		"/hr":                "/login?from=%2Fhr",
		"/orders?page=2&q=x": "/login?from=%2Forders%3Fpage%3D2%26q%3Dx",
	}
	for in, want := range cases {
		if got := LoginRedirect(in); got != want {
			t.Errorf("LoginRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPostLoginRedirect_IgnoresRequestedLocation(t *testing.T) {
	if got := PostLoginRedirect(identityFor(domain.RoleHR), "/finance"); got != DashboardPath {
		t.Fatalf("expected dashboard, got %q", got)
	}
}

func TestVerdictString(t *testing.T) {
	if Wait.String() != "wait" || Render.String() != "render" || Verdict(42).String() != "unknown" {
		t.Fatalf("unexpected verdict names")
	}
}
