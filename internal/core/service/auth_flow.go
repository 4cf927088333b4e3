package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/policy"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/internal/core/session"
)

// Credentials is the input of a credential login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterInput bootstraps the first administrative identity.
type RegisterInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type mfaCode struct {
	Code string `json:"code" validate:"required,otpcode"`
}

// LoginResult describes where a login or MFA step left the flow.
type LoginResult struct {
	Stage    domain.Stage
	UserID   string
	Identity *domain.Identity
	Redirect string
}

// Snapshot is a read-only view of the flow for rendering.
type Snapshot struct {
	Stage         domain.Stage          `json:"stage"`
	PendingUserID string                `json:"pendingUserId,omitempty"`
	Enrollment    *domain.MFAEnrollment `json:"enrollment,omitempty"`
	Message       string                `json:"message,omitempty"`
}

// challenge holds the credentials replayed with the MFA code.
type challenge struct {
	email    string
	password string
}

// AuthFlow drives credential login, MFA enrollment and MFA challenge for one
// console session. Only one submission may be in flight at a time; network
// calls run without holding the state lock.
type AuthFlow struct {
	consoleID string
	backend   ports.AuthBackend
	store     *session.Store
	audit     ports.AuditRecorder
	log       zerolog.Logger

	busy atomic.Bool

	mu sync.Mutex
	// epoch advances on Logout and Abandon. A response to a submission made
	// under an older epoch is discarded.
	epoch         uint64
	stage         domain.Stage
	pendingUserID string
	enrollment    *domain.MFAEnrollment
	challenge     *challenge
	message       string
}

// NewAuthFlow returns a flow in the idle stage. audit may be nil.
func NewAuthFlow(consoleID string, backend ports.AuthBackend, store *session.Store, audit ports.AuditRecorder, log zerolog.Logger) *AuthFlow {
	return &AuthFlow{
		consoleID: consoleID,
		backend:   backend,
		store:     store,
		audit:     audit,
		log:       log,
		stage:     domain.StageIdle,
	}
}

// Login exchanges email and password for one of three outcomes.
func (f *AuthFlow) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := validate.check(creds); err != nil {
		return nil, err
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrSubmissionPending
	}
	defer f.busy.Store(false)

	f.mu.Lock()
	f.resetLocked(domain.StageIdle)
	epoch := f.epoch
	f.mu.Unlock()

	resp, err := f.backend.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, f.loginFailed(epoch, err)
	}

	switch {
	case resp.RequiresMFASetup && resp.UserID != "":
		if !f.lockAt(epoch) {
			return nil, domain.ErrSubmissionCancelled
		}
		f.stage = domain.StageSetupPending
		f.pendingUserID = resp.UserID
		f.mu.Unlock()
		f.record(domain.EventMFASetupRequired, resp.UserID, "", "")
		return &LoginResult{Stage: domain.StageSetupPending, UserID: resp.UserID}, nil

	case resp.RequiresMFA && resp.UserID != "":
		if !f.lockAt(epoch) {
			return nil, domain.ErrSubmissionCancelled
		}
		f.stage = domain.StageAwaitingCode
		f.pendingUserID = resp.UserID
		f.challenge = &challenge{email: creds.Email, password: creds.Password}
		f.mu.Unlock()
		f.record(domain.EventMFAChallenged, resp.UserID, "", "")
		return &LoginResult{Stage: domain.StageAwaitingCode, UserID: resp.UserID}, nil
	}

	sess, ok := sessionFrom(resp)
	if !ok {
		f.log.Warn().Bool("success", resp.Success).Bool("has_user", resp.User != nil).Msg("malformed login response")
		return nil, f.loginFailed(epoch, domain.ErrLoginFailed)
	}
	return f.authenticate(ctx, sess, epoch)
}

// SetupMFA requests a provisioning secret and scannable artifact for the
// pending user. Calling it again while awaiting confirmation re-issues them.
func (f *AuthFlow) SetupMFA(ctx context.Context) (*domain.MFAEnrollment, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrSubmissionPending
	}
	defer f.busy.Store(false)

	f.mu.Lock()
	if (f.stage != domain.StageSetupPending && f.stage != domain.StageAwaitingConfirmation) || f.pendingUserID == "" {
		f.mu.Unlock()
		return nil, domain.ErrNoPendingMFA
	}
	userID := f.pendingUserID
	previous := f.stage
	f.stage = domain.StageSetupRequested
	f.mu.Unlock()

	resp, err := f.backend.SetupMFA(ctx, userID)
	if err != nil {
		f.mu.Lock()
		if f.stage == domain.StageSetupRequested {
			f.stage = previous
		}
		f.message = domain.UserMessage(err)
		f.mu.Unlock()
		return nil, normalize(err)
	}

	enrollment, artErr := buildEnrollment(userID, resp)
	if artErr != nil {
		f.log.Warn().Err(artErr).Str("user_id", userID).Msg("enrollment artifact not rendered")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stage != domain.StageSetupRequested {
		return nil, domain.ErrNoPendingMFA
	}
	f.stage = domain.StageAwaitingConfirmation
	f.enrollment = &enrollment
	f.message = ""
	out := enrollment
	return &out, nil
}

// VerifyMFA confirms enrollment with a 6-digit code. Success discards the
// enrollment context and leaves the console signed out; the user signs in
// again with the second factor in place.
func (f *AuthFlow) VerifyMFA(ctx context.Context, code string) error {
	if err := validate.check(mfaCode{Code: code}); err != nil {
		return err
	}
	if !f.busy.CompareAndSwap(false, true) {
		return domain.ErrSubmissionPending
	}
	defer f.busy.Store(false)

	f.mu.Lock()
	if f.stage != domain.StageAwaitingConfirmation || f.enrollment == nil {
		f.mu.Unlock()
		return domain.ErrNoPendingMFA
	}
	userID := f.enrollment.UserID
	f.mu.Unlock()

	if err := f.backend.VerifyMFA(ctx, userID, code); err != nil {
		f.mu.Lock()
		f.message = domain.UserMessage(err)
		f.mu.Unlock()
		f.record(domain.EventMFARejected, userID, "", "enrollment")
		return normalize(err)
	}

	f.mu.Lock()
	if f.stage == domain.StageAwaitingConfirmation {
		f.resetLocked(domain.StageEnrollmentCompleted)
	}
	f.mu.Unlock()
	f.record(domain.EventMFAEnrolled, userID, "", "")
	return nil
}

// LoginWithMFA answers the per-login challenge with the original credentials
// and a 6-digit code. A rejection keeps the flow awaiting a code.
func (f *AuthFlow) LoginWithMFA(ctx context.Context, code string) (*LoginResult, error) {
	if err := validate.check(mfaCode{Code: code}); err != nil {
		return nil, err
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrSubmissionPending
	}
	defer f.busy.Store(false)

	f.mu.Lock()
	if f.stage != domain.StageAwaitingCode || f.challenge == nil {
		f.mu.Unlock()
		return nil, domain.ErrNoPendingMFA
	}
	creds := *f.challenge
	userID := f.pendingUserID
	epoch := f.epoch
	f.mu.Unlock()

	resp, err := f.backend.LoginWithMFA(ctx, creds.email, creds.password, code)
	if err == nil {
		if sess, ok := sessionFrom(resp); ok {
			return f.authenticate(ctx, sess, epoch)
		}
		err = domain.ErrLoginFailed
	}

	if f.lockAt(epoch) {
		f.message = domain.UserMessage(err)
		f.mu.Unlock()
	}
	f.record(domain.EventMFARejected, userID, "", "challenge")
	return nil, normalize(err)
}

// Register forwards a registration to the backend. It never creates a session.
func (f *AuthFlow) Register(ctx context.Context, in RegisterInput) error {
	if err := validate.check(in); err != nil {
		return err
	}
	if !f.busy.CompareAndSwap(false, true) {
		return domain.ErrSubmissionPending
	}
	defer f.busy.Store(false)

	if err := f.backend.Register(ctx, in.FullName, in.Email, in.Password); err != nil {
		return normalize(err)
	}
	f.record(domain.EventRegistered, "", "", in.Email)
	return nil
}

// Logout clears the session and discards any pending MFA context. A login
// still waiting on the backend will not sign the console back in.
func (f *AuthFlow) Logout(ctx context.Context) error {
	f.mu.Lock()
	identity, signedIn := f.store.Identity()
	f.epoch++
	f.resetLocked(domain.StageIdle)
	f.mu.Unlock()

	err := f.store.Clear(ctx)
	if signedIn {
		f.record(domain.EventLogout, identity.ID, identity.Role, "")
	}
	return err
}

// Abandon drops any pending MFA context without touching the session.
func (f *AuthFlow) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stage == domain.StageAuthenticated {
		return
	}
	f.epoch++
	f.resetLocked(domain.StageIdle)
}

// Idle reports whether the flow holds nothing worth keeping: no submission in
// flight, no pending MFA context and no message to show.
func (f *AuthFlow) Idle() bool {
	if f.busy.Load() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage == domain.StageIdle && f.message == "" && f.pendingUserID == ""
}

// Snapshot returns the current flow state.
func (f *AuthFlow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{Stage: f.stage, PendingUserID: f.pendingUserID, Message: f.message}
	if f.enrollment != nil {
		e := *f.enrollment
		snap.Enrollment = &e
	}
	if snap.Stage == domain.StageAuthenticated {
		if _, ok := f.store.Identity(); !ok {
			snap.Stage = domain.StageIdle
		}
	}
	return snap
}

// authenticate commits sess unless the flow moved past epoch. The state lock
// is held across the commit so a concurrent Logout either cancels it or
// clears what it stored.
func (f *AuthFlow) authenticate(ctx context.Context, sess domain.Session, epoch uint64) (*LoginResult, error) {
	identity := sess.Identity
	if !f.lockAt(epoch) {
		f.log.Info().Str("user_id", identity.ID).Msg("login response discarded after logout")
		return nil, domain.ErrSubmissionCancelled
	}
	if err := f.store.Commit(ctx, sess); err != nil {
		f.stage = domain.StageLoginFailed
		f.message = domain.MsgSession
		f.mu.Unlock()
		f.log.Error().Err(err).Str("user_id", identity.ID).Msg("session not stored")
		f.record(domain.EventLoginFailed, identity.ID, identity.Role, domain.MsgSession)
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
	}
	f.resetLocked(domain.StageAuthenticated)
	f.mu.Unlock()

	f.record(domain.EventLoginSucceeded, identity.ID, identity.Role, "")
	f.log.Info().Str("user_id", identity.ID).Str("role", string(identity.Role)).Msg("signed in")
	return &LoginResult{
		Stage:    domain.StageAuthenticated,
		UserID:   identity.ID,
		Identity: &identity,
		Redirect: policy.PostLoginRedirect(identity, ""),
	}, nil
}

func (f *AuthFlow) loginFailed(epoch uint64, err error) error {
	msg := domain.UserMessage(err)
	if f.lockAt(epoch) {
		f.stage = domain.StageLoginFailed
		f.message = msg
		f.mu.Unlock()
	}
	f.record(domain.EventLoginFailed, "", "", msg)
	return normalize(err)
}

// lockAt takes the state lock unless the flow moved past epoch.
func (f *AuthFlow) lockAt(epoch uint64) bool {
	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return false
	}
	return true
}

func (f *AuthFlow) resetLocked(stage domain.Stage) {
	f.stage = stage
	f.pendingUserID = ""
	f.enrollment = nil
	f.challenge = nil
	f.message = ""
}

func (f *AuthFlow) record(kind domain.AuthEventKind, userID string, role domain.Role, detail string) {
	if f.audit == nil {
		return
	}
	f.audit.Record(domain.AuthEvent{
		SessionID: f.consoleID,
		UserID:    userID,
		Role:      role,
		Kind:      kind,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}

// sessionFrom accepts only a complete success payload.
func sessionFrom(resp *ports.LoginResponse) (domain.Session, bool) {
	if resp == nil || !resp.Success || resp.AccessToken == "" || resp.RefreshToken == "" {
		return domain.Session{}, false
	}
	if resp.User == nil || !resp.User.WellFormed() {
		return domain.Session{}, false
	}
	csrf := resp.CSRFToken
	if csrf == "" {
		csrf = uuid.NewString()
	}
	return domain.Session{
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		CSRFToken:       csrf,
		Identity:        *resp.User,
		AccessExpiresAt: resp.AccessExpiresAt,
	}, true
}

// normalize folds a message-less backend rejection into ErrLoginFailed so
// callers show the generic text.
func normalize(err error) error {
	var ae *domain.AuthenticationError
	if errors.As(err, &ae) && ae.Message == "" {
		return fmt.Errorf("%w (status %d)", domain.ErrLoginFailed, ae.Status)
	}
	return err
}
