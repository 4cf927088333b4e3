package domain

import "time"

// AuthEventKind names an auditable transition of a console session.
type AuthEventKind string

const (
	EventLoginSucceeded   AuthEventKind = "login_succeeded"
	EventLoginFailed      AuthEventKind = "login_failed"
	EventMFASetupRequired AuthEventKind = "mfa_setup_required"
	EventMFAChallenged    AuthEventKind = "mfa_challenged"
	EventMFAEnrolled      AuthEventKind = "mfa_enrolled"
	EventMFARejected      AuthEventKind = "mfa_rejected"
	EventLogout           AuthEventKind = "logout"
	EventSessionExpired   AuthEventKind = "session_expired"
	EventSessionCorrupt   AuthEventKind = "session_corrupt"
	EventAccessDenied     AuthEventKind = "access_denied"
	EventRegistered       AuthEventKind = "registered"
)

// AuthEvent is one entry of the console's authentication audit trail.
type AuthEvent struct {
	ID        string        `json:"id,omitempty"`
	SessionID string        `json:"consoleId"`
	UserID    string        `json:"userId,omitempty"`
	Role      Role          `json:"role,omitempty"`
	Kind      AuthEventKind `json:"kind"`
	Route     string        `json:"route,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	At        time.Time     `json:"at"`
}
