package domain

// Stage is the position of a console session in the login and MFA flows.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageLoginFailed   Stage = "login_failed"
	StageAuthenticated Stage = "authenticated"

	// Enrollment: setup pending -> setup requested -> awaiting confirmation -> completed.
	StageSetupPending         Stage = "mfa_setup_pending"
	StageSetupRequested       Stage = "mfa_setup_requested"
	StageAwaitingConfirmation Stage = "mfa_awaiting_confirmation"
	StageEnrollmentCompleted  Stage = "mfa_enrollment_completed"

	// Challenge: awaiting code -> authenticated.
	StageAwaitingCode Stage = "mfa_awaiting_code"
)

// MFAEnrollment is the ephemeral context between "setup required" and a
// confirmed verification.
//
// QRCode is the artifact exactly as the backend returned it. QRImage is a PNG
// data URI rendered locally when QRCode is an otpauth:// URI.
type MFAEnrollment struct {
	UserID  string `json:"userId"`
	Secret  string `json:"secret"`
	QRCode  string `json:"qrCode"`
	QRImage string `json:"qrImage,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Account string `json:"account,omitempty"`
}
