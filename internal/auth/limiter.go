package auth

// LockoutThreshold is the number of failed login submissions that locks
// a browser session.
const LockoutThreshold = 3

// AttemptState is the per-session login attempt counter. It is a value
// type with pure transition functions; the session store owns the
// persisted copy, so no cross-request locking is needed. A new session
// always starts Open with a zero count.
type AttemptState struct {
	Count int `json:"count"`
}

// RecordFailure returns the state after one failed credential/MFA check.
func (s AttemptState) RecordFailure() AttemptState {
	return AttemptState{Count: s.Count + 1}
}

// Reset returns the Open zero state. Applied on successful login and on
// explicit unlock.
func (s AttemptState) Reset() AttemptState {
	return AttemptState{}
}

// Locked reports whether the session has reached the lockout threshold.
// While locked, the login form is withheld entirely.
func (s AttemptState) Locked() bool {
	return s.Count >= LockoutThreshold
}

// Remaining is the number of attempts left before lockout.
func (s AttemptState) Remaining() int {
	if s.Count >= LockoutThreshold {
		return 0
	}
	return LockoutThreshold - s.Count
}
