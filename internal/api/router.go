package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/backoffice-console/docs"
	"github.com/99minutos/backoffice-console/internal/api/handler"
	"github.com/99minutos/backoffice-console/internal/api/middleware"
	"github.com/99minutos/backoffice-console/internal/core/policy"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Sessions *service.Sessions
	Audit    ports.AuditRecorder
	Cookie   middleware.CookieConfig
	// AuthRate and AuthBurst throttle auth submissions per client address.
	AuthRate  float64
	AuthBurst int
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]handlers.Pinger
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.IPExtractor = echo.ExtractIPDirect()
	if deps.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "console",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Health checks, metrics and docs (no console session) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Console routes ---
	console := e.Group("", middleware.Console(deps.Sessions, deps.Cookie))

	authHandler := handler.NewAuthHandler(deps.Sessions)
	consoleHandler := handler.NewConsoleHandler()
	throttle := middleware.NewThrottler(deps.AuthRate, deps.AuthBurst).Middleware()

	console.GET(policy.PublicPath, consoleHandler.Landing)
	console.GET(policy.LoginPath, consoleHandler.LoginPage)

	auth := console.Group("/auth")
	auth.GET("/session", authHandler.Session)
	auth.POST("/login", authHandler.Login, throttle)
	auth.POST("/register", authHandler.Register, throttle)
	auth.POST("/mfa/setup", authHandler.SetupMFA, throttle)
	auth.POST("/mfa/verify", authHandler.VerifyMFA, throttle)
	auth.POST("/mfa/login", authHandler.LoginWithMFA, throttle)
	auth.POST("/mfa/cancel", authHandler.CancelMFA, middleware.CSRF())
	auth.POST("/logout", authHandler.Logout, middleware.CSRF())

	// Every feature of the policy table sits behind the access guard.
	for _, f := range policy.Features() {
		guard := middleware.Guard(f.Roles, deps.Audit)
		if f.Path == policy.DashboardPath {
			console.GET(f.Path, consoleHandler.Dashboard, guard)
			continue
		}
		console.GET(f.Path, consoleHandler.Screen(f), guard)
	}

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				ev = log.Error().Err(v.Error)
			case v.Error != nil:
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

