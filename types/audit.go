package types

import "time"

// Severity classifies an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Audit event categories. The security dashboard groups entries by these.
const (
	AuditRegistration    = "registration"
	AuditLoginSuccess    = "login_success"
	AuditLoginFailure    = "login_failure"
	AuditLockout         = "lockout"
	AuditLogout          = "logout"
	AuditUnauthorized    = "unauthorized"
	AuditPostMutation    = "post_mutation"
	AuditAttackSignature = "attack_signature"
)

// AuditEvent is one append-only entry in the security event log.
// Entries are write-only for the core flows and never mutated.
type AuditEvent struct {
	// ID is the unique identifier of the entry.
	ID int64 `json:"id" db:"id"`

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Severity classifies the event.
	Severity Severity `json:"severity" db:"severity"`

	// Category is the outcome category (login success/failure, lockout, ...).
	Category string `json:"category" db:"category"`

	// Email is the actor's email, or the attempted email on failures.
	Email string `json:"email" db:"email"`

	// Role is the actor's role, when known.
	Role string `json:"role" db:"role"`

	// IP is the source address of the triggering request.
	IP string `json:"ip" db:"ip"`

	// Message is the human-readable description of the event.
	Message string `json:"message" db:"message"`
}
