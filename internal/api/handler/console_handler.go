package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/policy"
)

// ConsoleHandler renders the console's pages as JSON screen descriptors.
type ConsoleHandler struct{}

func NewConsoleHandler() *ConsoleHandler {
	return &ConsoleHandler{}
}

type screenResponse struct {
	Screen string            `json:"screen"`
	Title  string            `json:"title"`
	User   *domain.Identity  `json:"currentIdentity,omitempty"`
	Links  []policy.Link     `json:"links"`
	Params map[string]string `json:"params,omitempty"`
}

type loginPageResponse struct {
	Screen string       `json:"screen"`
	From   string       `json:"from,omitempty"`
	Notice string       `json:"notice,omitempty"`
	Stage  domain.Stage `json:"stage"`
}

// Landing is the public page. Signed-in visitors also get their navigation.
func (h *ConsoleHandler) Landing(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	resp := screenResponse{Screen: "landing", Title: "Back office", Links: []policy.Link{}}
	if identity, ok := console.Store.Identity(); ok {
		resp.User = &identity
		resp.Links = policy.Links(identity)
	}
	return c.JSON(http.StatusOK, resp)
}

// LoginPage is the login screen. A signed-in console goes to the dashboard;
// otherwise the screen carries the intended route and the one-shot notice
// left by an idle expiry.
func (h *ConsoleHandler) LoginPage(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	if _, ok := console.Store.Identity(); ok {
		return c.Redirect(http.StatusSeeOther, policy.DashboardPath)
	}

	from := c.QueryParam("from")
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		from = ""
	}
	return c.JSON(http.StatusOK, loginPageResponse{
		Screen: "login",
		From:   from,
		Notice: console.Store.TakeNotice(),
		Stage:  console.Flow.Snapshot().Stage,
	})
}

// Dashboard is the Role Router: it forwards the identity to its landing page.
func (h *ConsoleHandler) Dashboard(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, policy.Landing(identity))
}

// Screen renders a feature of the policy table. A branch-scoped feature only
// opens the identity's own branch.
func (h *ConsoleHandler) Screen(feature policy.Feature) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := ctxIdentity(c)
		if err != nil {
			return err
		}

		var params map[string]string
		if strings.Contains(feature.Path, policy.BranchParam) {
			branch := c.Param(strings.TrimPrefix(policy.BranchParam, ":"))
			if branch == "" || branch != identity.BranchID {
				return c.Redirect(http.StatusSeeOther, policy.DashboardPath)
			}
			params = map[string]string{"branchId": branch}
		}

		return c.JSON(http.StatusOK, screenResponse{
			Screen: feature.Key,
			Title:  feature.Label,
			User:   &identity,
			Links:  policy.Links(identity),
			Params: params,
		})
	}
}
