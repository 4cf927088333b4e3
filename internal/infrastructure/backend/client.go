// Package backend is the HTTP client of the authentication REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20

	pathLogin        = "/auth/login"
	pathRegister     = "/auth/register"
	pathMFASetup     = "/auth/mfa/setup"
	pathMFAVerify    = "/auth/mfa/verify"
	pathLoginWithMFA = "/auth/mfa/login"
)

// Config captures the backend location and per-call timeout.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.AuthBackend over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient returns a Client. A default timeout is applied when none is provided.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

var _ ports.AuthBackend = (*Client)(nil)

// --- wire types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type mfaLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type mfaSetupRequest struct {
	UserID string `json:"userId"`
}

type mfaVerifyRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginBody struct {
	Success          bool             `json:"success"`
	AccessToken      string           `json:"accessToken"`
	RefreshToken     string           `json:"refreshToken"`
	CSRFToken        string           `json:"csrfToken"`
	User             *domain.Identity `json:"user"`
	RequiresMFASetup bool             `json:"requiresMfaSetup"`
	RequiresMFA      bool             `json:"requiresMfa"`
	UserID           string           `json:"userId"`
}

type mfaSetupBody struct {
	Secret string `json:"secret"`
	QRCode string `json:"qrCode"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// --- operations ---

func (c *Client) Login(ctx context.Context, email, password string) (*ports.LoginResponse, error) {
	return c.login(ctx, pathLogin, loginRequest{Email: email, Password: password})
}

func (c *Client) LoginWithMFA(ctx context.Context, email, password, code string) (*ports.LoginResponse, error) {
	return c.login(ctx, pathLoginWithMFA, mfaLoginRequest{Email: email, Password: password, Code: code})
}

func (c *Client) SetupMFA(ctx context.Context, userID string) (*ports.MFASetupResponse, error) {
	var body mfaSetupBody
	if err := c.post(ctx, pathMFASetup, mfaSetupRequest{UserID: userID}, &body); err != nil {
		return nil, err
	}
	return &ports.MFASetupResponse{Secret: body.Secret, QRCode: body.QRCode}, nil
}

func (c *Client) VerifyMFA(ctx context.Context, userID, code string) error {
	return c.post(ctx, pathMFAVerify, mfaVerifyRequest{UserID: userID, Code: code}, nil)
}

func (c *Client) Register(ctx context.Context, fullName, email, password string) error {
	return c.post(ctx, pathRegister, registerRequest{FullName: fullName, Email: email, Password: password}, nil)
}

func (c *Client) login(ctx context.Context, path string, req any) (*ports.LoginResponse, error) {
	var body loginBody
	if err := c.post(ctx, path, req, &body); err != nil {
		return nil, err
	}
	return &ports.LoginResponse{
		Success:          body.Success,
		AccessToken:      body.AccessToken,
		RefreshToken:     body.RefreshToken,
		CSRFToken:        body.CSRFToken,
		User:             body.User,
		RequiresMFASetup: body.RequiresMFASetup,
		RequiresMFA:      body.RequiresMFA,
		UserID:           body.UserID,
		AccessExpiresAt:  accessExpiry(body.AccessToken),
	}, nil
}

// post sends req as JSON and decodes a 2xx reply into out (when non-nil).
// Transport failures and gateway statuses become *domain.NetworkError; other
// non-2xx replies become *domain.AuthenticationError carrying the backend's
// message, if any.
func (c *Client) post(ctx context.Context, path string, req, out any) error {
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(path, result).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		result = "unreachable"
		c.log.Warn().Err(err).Str("endpoint", path).Msg("backend unreachable")
		return &domain.NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		result = "unreachable"
		return &domain.NetworkError{Op: path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout:
		result = "unreachable"
		return &domain.NetworkError{Op: path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		result = "rejected"
		return &domain.AuthenticationError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		result = "rejected"
		c.log.Warn().Err(err).Str("endpoint", path).Msg("undecodable backend response")
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrLoginFailed, path, err)
	}
	return nil
}

// errorMessage extracts the backend's human-readable message, if it sent one.
func errorMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// accessExpiry reads the exp claim of a JWT access token. The signature is not
// checked; the backend is the authority and the value only bounds a cache TTL.
func accessExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

var errEmptyBaseURL = errors.New("backend: base url is empty")

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errEmptyBaseURL
	}
	return nil
}
