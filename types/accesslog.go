package types

import "time"

// AccessLog tracks login history for one account. Exactly one row exists
// per user; it is created lazily if registration predates the schema row.
type AccessLog struct {
	// ID is the unique identifier of the log row.
	ID int `json:"id" db:"id"`

	// UserID references the owning user.
	UserID int `json:"user_id" db:"user_id"`

	// RegisteredOn is when the row was created.
	RegisteredOn time.Time `json:"registered_on" db:"registered_on"`

	// LatestLogin is the time of the most recent successful login.
	LatestLogin *time.Time `json:"latest_login" db:"latest_login"`

	// PreviousLogin is the successful login before the latest one.
	PreviousLogin *time.Time `json:"previous_login" db:"previous_login"`

	// LatestIP is the source address of the most recent successful login.
	LatestIP *string `json:"latest_ip" db:"latest_ip"`

	// PreviousIP is the source address of the login before the latest one.
	PreviousIP *string `json:"previous_ip" db:"previous_ip"`
}
