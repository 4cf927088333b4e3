// Package policy holds the console's single access-policy table. The Access
// Guard, the Role Router and the navigation links are all views over it, so a
// role can never see a link it would be bounced from, nor land on a page it
// may not open.
package policy

import (
	"slices"
	"strings"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

const (
	PublicPath    = "/"
	LoginPath     = "/login"
	DashboardPath = "/dashboard"

	// BranchParam is the only path parameter features may use; it expands to
	// the identity's branch.
	BranchParam = ":branchId"
)

// Feature is one routable area of the console.
type Feature struct {
	Key   string
	Path  string
	Label string
	// Roles allowed to open the feature. Empty means any authenticated identity.
	Roles []domain.Role
	// Home is the role whose canonical landing page this feature is.
	Home domain.Role
	Nav  bool
}

// Link is a navigation entry resolved for one identity.
type Link struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

var (
	bossOnly   = []domain.Role{domain.RoleBoss}
	management = []domain.Role{domain.RoleManager, domain.RoleBoss}
)

var features = []Feature{
	{Key: "dashboard", Path: DashboardPath, Label: "Dashboard", Nav: true},
	{Key: "boss", Path: "/boss", Label: "Boss console", Roles: bossOnly, Home: domain.RoleBoss, Nav: true},
	{Key: "manager", Path: "/manager", Label: "Manager console", Roles: management, Home: domain.RoleManager, Nav: true},
	{Key: "hr", Path: "/hr", Label: "HR console", Roles: []domain.Role{domain.RoleHR, domain.RoleBoss}, Home: domain.RoleHR, Nav: true},
	{Key: "admin", Path: "/admin", Label: "Admin console", Roles: []domain.Role{domain.RoleAdmin}, Home: domain.RoleAdmin, Nav: true},
	{
		Key:   "logistics",
		Path:  "/logistics",
		Label: "Logistics",
		Roles: []domain.Role{domain.RoleLogistics, domain.RoleManager, domain.RoleBoss},
		Home:  domain.RoleLogistics,
		Nav:   true,
	},
	{Key: "sales", Path: "/sales/" + BranchParam, Label: "Sales", Roles: []domain.Role{domain.RoleSales}, Home: domain.RoleSales, Nav: true},
	{Key: "branches", Path: "/branches", Label: "Branches", Roles: management, Nav: true},
	{
		Key:   "stock",
		Path:  "/stock",
		Label: "Stock",
		Roles: []domain.Role{domain.RoleStock, domain.RoleAdmin, domain.RoleManager, domain.RoleBoss},
		Nav:   true,
	},
	{
		Key:   "orders",
		Path:  "/orders",
		Label: "Orders",
		Roles: []domain.Role{domain.RoleSales, domain.RoleLogistics, domain.RoleManager, domain.RoleBoss},
		Nav:   true,
	},
	{Key: "employees", Path: "/employees", Label: "Employees", Roles: []domain.Role{domain.RoleHR, domain.RoleManager, domain.RoleBoss}, Nav: true},
	{Key: "finance", Path: "/finance", Label: "Finance", Roles: management, Nav: true},
}

// Features returns a copy of the policy table in declaration order.
func Features() []Feature {
	out := make([]Feature, len(features))
	for i, f := range features {
		f.Roles = slices.Clone(f.Roles)
		out[i] = f
	}
	return out
}

// Lookup finds a feature by key.
func Lookup(key string) (Feature, bool) {
	for _, f := range features {
		if f.Key == key {
			return f, true
		}
	}
	return Feature{}, false
}

// Allows reports whether role may open the feature.
func (f Feature) Allows(role domain.Role) bool {
	return permits(f.Roles, role)
}

// Resolve expands the feature's path for identity. It reports false when the
// path needs a branch the identity does not have.
func (f Feature) Resolve(identity domain.Identity) (string, bool) {
	if !strings.Contains(f.Path, BranchParam) {
		return f.Path, true
	}
	if identity.BranchID == "" {
		return "", false
	}
	return strings.ReplaceAll(f.Path, BranchParam, identity.BranchID), true
}

// Landing is the Role Router: the canonical destination for identity.
// Roles without a home feature, and sales identities without a branch, land
// on the public page.
func Landing(identity domain.Identity) string {
	for _, f := range features {
		if f.Home == "" || f.Home != identity.Role {
			continue
		}
		if path, ok := f.Resolve(identity); ok {
			return path
		}
		break
	}
	return PublicPath
}

// Links is the navigation surface: every nav feature identity may open.
func Links(identity domain.Identity) []Link {
	links := make([]Link, 0, len(features))
	for _, f := range features {
		if !f.Nav || !f.Allows(identity.Role) {
			continue
		}
		path, ok := f.Resolve(identity)
		if !ok {
			continue
		}
		links = append(links, Link{Key: f.Key, Label: f.Label, Path: path})
	}
	return links
}

// PostLoginRedirect is where a successful login lands. The requested location
// is ignored: every login enters through the dashboard route, which forwards
// to the role's landing page.
func PostLoginRedirect(_ domain.Identity, _ string) string {
	return DashboardPath
}

func permits(required []domain.Role, role domain.Role) bool {
	return len(required) == 0 || slices.Contains(required, role)
}
