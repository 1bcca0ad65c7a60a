package types

import "time"

// Role is the closed set of authorization levels an account can hold.
type Role string

const (
	// RoleEndUser is the default role assigned at registration.
	RoleEndUser Role = "end_user"

	// RoleDBAdmin grants access to the database admin console.
	RoleDBAdmin Role = "db_admin"

	// RoleSecAdmin grants access to the security dashboard.
	RoleSecAdmin Role = "sec_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEndUser, RoleDBAdmin, RoleSecAdmin:
		return true
	}
	return false
}

// User represents an account in the system.
// It contains identity, credentials, MFA state, and role metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login identity. Matched case-sensitively and
	// immutable after creation.
	Email string `json:"email" db:"email"`

	// FirstName is the user's first name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's last name.
	LastName string `json:"last_name" db:"last_name"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone" db:"phone"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// MFASecret is the base32 TOTP shared secret, generated once at
	// registration and never regenerated for the account's lifetime.
	MFASecret string `json:"-" db:"mfa_secret"`

	// MFAEnabled starts false and flips to true exactly once, on the
	// first login that supplies both a correct password and a correct
	// TOTP token.
	MFAEnabled bool `json:"mfa_enabled" db:"mfa_enabled"`

	// Role indicates the user's authorization level within the system.
	// Immutable after creation.
	Role Role `json:"role" db:"role"`

	// Active reserves administrative account suspension. An inactive
	// account fails login exactly like a bad credential.
	Active bool `json:"active" db:"active"`

	// Salt is a per-account random 32-byte value, base64-encoded, used
	// only for content-key derivation. Password hashing carries its own
	// algorithm-internal salt.
	Salt string `json:"-" db:"salt"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
