package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/policy"
	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/pkg/metrics"
)

// ConsoleDropper forgets a console after logout.
type ConsoleDropper interface {
	Drop(id string)
}

type AuthHandler struct {
	consoles ConsoleDropper
}

func NewAuthHandler(consoles ConsoleDropper) *AuthHandler {
	return &AuthHandler{consoles: consoles}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	Stage     domain.Stage     `json:"stage"`
	UserID    string           `json:"userId,omitempty"`
	User      *domain.Identity `json:"user,omitempty"`
	Redirect  string           `json:"redirect,omitempty"`
	CSRFToken string           `json:"csrfToken,omitempty"`
}

type stageResponse struct {
	Stage    domain.Stage `json:"stage"`
	Redirect string       `json:"redirect,omitempty"`
}

type sessionResponse struct {
	Authenticated bool                  `json:"authenticated"`
	Loading       bool                  `json:"isSessionLoading"`
	User          *domain.Identity      `json:"currentIdentity,omitempty"`
	Stage         domain.Stage          `json:"stage"`
	PendingUserID string                `json:"pendingUserId,omitempty"`
	Enrollment    *domain.MFAEnrollment `json:"enrollment,omitempty"`
	Message       string                `json:"message,omitempty"`
	Notice        string                `json:"notice,omitempty"`
	Links         []policy.Link         `json:"links"`
	CSRFToken     string                `json:"csrfToken,omitempty"`
}

// Login exchanges credentials for a session or an MFA step.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	res, err := console.Flow.Login(c.Request().Context(), service.Credentials{Email: req.Email, Password: req.Password})
	metrics.LoginAttemptsTotal.WithLabelValues(loginOutcome(res, err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newLoginResponse(console, res))
}

// Register bootstraps an identity on the backend. It never signs in.
//
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	in := service.RegisterInput{FullName: req.FullName, Email: req.Email, Password: req.Password}
	if err := console.Flow.Register(c.Request().Context(), in); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"redirect": policy.LoginPath})
}

// SetupMFA issues the enrollment secret and scannable code for the pending user.
//
// @Summary      Start MFA enrollment
// @Tags         mfa
// @Produce      json
// @Success      200  {object}  domain.MFAEnrollment
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /auth/mfa/setup [post]
func (h *AuthHandler) SetupMFA(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	enrollment, err := console.Flow.SetupMFA(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enrollment)
}

// VerifyMFA confirms enrollment with a 6-digit code.
//
// @Summary      Confirm MFA enrollment
// @Tags         mfa
// @Accept       json
// @Produce      json
// @Param        body  body      codeRequest  true  "6-digit code"
// @Success      200   {object}  stageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/mfa/verify [post]
func (h *AuthHandler) VerifyMFA(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	err = console.Flow.VerifyMFA(c.Request().Context(), req.Code)
	metrics.MFAVerificationsTotal.WithLabelValues("enrollment", mfaResult(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stageResponse{Stage: domain.StageEnrollmentCompleted, Redirect: policy.LoginPath})
}

// LoginWithMFA answers the per-login challenge.
//
// @Summary      Login with MFA code
// @Tags         mfa
// @Accept       json
// @Produce      json
// @Param        body  body      codeRequest  true  "6-digit code"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/mfa/login [post]
func (h *AuthHandler) LoginWithMFA(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	res, err := console.Flow.LoginWithMFA(c.Request().Context(), req.Code)
	metrics.MFAVerificationsTotal.WithLabelValues("challenge", mfaResult(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newLoginResponse(console, res))
}

// CancelMFA abandons a pending enrollment or challenge, discarding the
// credentials held for it. A signed-in session is left alone.
//
// @Summary      Cancel the pending MFA step
// @Tags         mfa
// @Produce      json
// @Success      200  {object}  stageResponse
// @Router       /auth/mfa/cancel [post]
func (h *AuthHandler) CancelMFA(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	console.Flow.Abandon()
	return c.JSON(http.StatusOK, stageResponse{Stage: console.Flow.Snapshot().Stage, Redirect: policy.LoginPath})
}

// Logout clears the session and forgets the console.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Param        X-CSRF-Token  header    string  false  "Anti-forgery token (required when signed in)"
// @Success      200           {object}  stageResponse
// @Failure      403           {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}
	if err := console.Flow.Logout(c.Request().Context()); err != nil {
		return err
	}
	h.consoles.Drop(console.ID)
	return c.JSON(http.StatusOK, stageResponse{Stage: domain.StageIdle, Redirect: policy.LoginPath})
}

// Session reports the console's authentication state and navigation.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	console, err := ctxConsole(c)
	if err != nil {
		return err
	}

	snap := console.Flow.Snapshot()
	resp := sessionResponse{
		Loading:       console.Store.Loading(),
		Stage:         snap.Stage,
		PendingUserID: snap.PendingUserID,
		Enrollment:    snap.Enrollment,
		Message:       snap.Message,
		Notice:        console.Store.TakeNotice(),
		Links:         []policy.Link{},
	}
	if identity, ok := console.Store.Identity(); ok {
		resp.Authenticated = true
		resp.User = &identity
		resp.Links = policy.Links(identity)
		resp.CSRFToken = console.Store.CSRFToken()
	}
	return c.JSON(http.StatusOK, resp)
}

func newLoginResponse(console *service.Console, res *service.LoginResult) loginResponse {
	resp := loginResponse{Stage: res.Stage, UserID: res.UserID, User: res.Identity, Redirect: res.Redirect}
	if res.Stage == domain.StageAuthenticated {
		resp.CSRFToken = console.Store.CSRFToken()
	}
	return resp
}

func loginOutcome(res *service.LoginResult, err error) string {
	var (
		ve *domain.ValidationError
		ne *domain.NetworkError
	)
	switch {
	case err == nil && res != nil:
		switch res.Stage {
		case domain.StageSetupPending:
			return "mfa_setup_required"
		case domain.StageAwaitingCode:
			return "mfa_challenged"
		}
		return "authenticated"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ne):
		return "network"
	case errors.Is(err, domain.ErrSubmissionPending):
		return "pending"
	default:
		return "rejected"
	}
}

func mfaResult(err error) string {
	var ve *domain.ValidationError
	switch {
	case err == nil:
		return "accepted"
	case errors.As(err, &ve):
		return "invalid"
	default:
		return "rejected"
	}
}
