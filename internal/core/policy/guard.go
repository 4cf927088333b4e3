package policy

import (
	"net/url"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

// Verdict is the outcome of an access decision.
type Verdict int

const (
	// Wait: the session has not finished restoring; no decision yet.
	Wait Verdict = iota
	// RedirectLogin: nobody is signed in.
	RedirectLogin
	// RedirectDashboard: signed in, but the role may not open the route.
	RedirectDashboard
	// Render: signed in and permitted.
	Render
)

func (v Verdict) String() string {
	switch v {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is a verdict plus the redirect target, if any.
type Decision struct {
	Verdict  Verdict
	Location string
}

// Decide is the Access Guard. It is a pure function of its inputs.
func Decide(identity *domain.Identity, loading bool, required []domain.Role, requested string) Decision {
	switch {
	case loading:
		return Decision{Verdict: Wait}
	case identity == nil:
		return Decision{Verdict: RedirectLogin, Location: LoginRedirect(requested)}
	case !permits(required, identity.Role):
		return Decision{Verdict: RedirectDashboard, Location: DashboardPath}
	default:
		return Decision{Verdict: Render}
	}
}

// LoginRedirect builds the login location carrying the intended route.
func LoginRedirect(requested string) string {
	if requested == "" || requested == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": {requested}}.Encode()
}
