package domain

import "time"

// Role is the closed set of console roles. Values outside the set can still
// arrive from the backend; they are carried as-is and route to the public
// landing page.
type Role string

const (
	RoleSales     Role = "sales"
	RoleStock     Role = "stock"
	RoleLogistics Role = "logistics"
	RoleHR        Role = "hr"
	RoleManager   Role = "manager"
	RoleBoss      Role = "boss"
	RoleAdmin     Role = "admin"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleSales, RoleStock, RoleLogistics, RoleHR, RoleManager, RoleBoss, RoleAdmin}

// Valid reports whether r belongs to the closed role enumeration.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Identity is the authenticated principal. It is replaced wholesale on every
// login and never mutated field by field.
type Identity struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
	BranchID string `json:"branchId,omitempty"`
}

// WellFormed reports whether the identity carries the fields every consumer
// relies on.
func (i Identity) WellFormed() bool {
	return i.ID != "" && i.Role != ""
}

// Session bundles the credentials and identity persisted across reloads.
type Session struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	Identity     Identity

	// AccessExpiresAt is the access token's own expiry when it could be read;
	// zero when unknown.
	AccessExpiresAt time.Time
}

// Complete reports whether all four session parts are present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.CSRFToken != "" && s.Identity.WellFormed()
}
