package ports

import (
	"context"
	"time"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

// LoginResponse is the decoded body of a login or MFA-login call. Exactly one
// of the three outcomes is expected; anything else is treated as malformed.
type LoginResponse struct {
	Success      bool
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	User         *domain.Identity

	RequiresMFASetup bool
	RequiresMFA      bool
	UserID           string

	// AccessExpiresAt is read from the access token when it is a JWT.
	AccessExpiresAt time.Time
}

// MFASetupResponse carries the provisioning secret and scannable artifact.
type MFASetupResponse struct {
	Secret string
	QRCode string
}

// AuthBackend is the REST backend's authentication surface.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	SetupMFA(ctx context.Context, userID string) (*MFASetupResponse, error)
	VerifyMFA(ctx context.Context, userID, code string) error
	LoginWithMFA(ctx context.Context, email, password, code string) (*LoginResponse, error)
	Register(ctx context.Context, fullName, email, password string) error
}
