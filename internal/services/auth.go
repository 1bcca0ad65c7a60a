package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/auth"
	"github.com/secureblog/apiserver/internal/crypto"
	"github.com/secureblog/apiserver/internal/mfa"
	"github.com/secureblog/apiserver/internal/store"
	"github.com/secureblog/apiserver/types"
	"go.uber.org/zap"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// AccessLogRepository defines persistence operations for login history.
type AccessLogRepository interface {
	GetByUserID(ctx context.Context, userID int) (types.AccessLog, error)
	Create(ctx context.Context, log types.AccessLog) (types.AccessLog, error)
	Update(ctx context.Context, log types.AccessLog) (types.AccessLog, error)
}

// ErrDuplicateAccount is returned when the registration email is already
// on file. No account is created and no failure audit entry is written.
var ErrDuplicateAccount = errors.New("email already exists")

// ErrInvalidEmail is returned for a malformed registration email.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrWeakPassword wraps every password-policy violation.
var ErrWeakPassword = errors.New("weak password")

// LoginOutcome is the result category of one login submission.
type LoginOutcome string

const (
	// LoginSuccess establishes a session and routes by role.
	LoginSuccess LoginOutcome = "success"

	// LoginMFASetup re-displays the provisioning secret and URI. The
	// account has no enforced MFA yet, so a wrong token is treated as
	// "hasn't set it up", not as an attack, and costs no attempt.
	LoginMFASetup LoginOutcome = "mfa_setup"

	// LoginRetry is a generic credential/MFA failure with attempts left.
	LoginRetry LoginOutcome = "retry"

	// LoginLocked means the session reached the lockout threshold; the
	// login form is withheld until an explicit unlock.
	LoginLocked LoginOutcome = "locked"
)

// RegisterParams carries a registration submission.
type RegisterParams struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Password  string
	IP        string
}

// RegisterResult carries the created account and its MFA enrollment data.
type RegisterResult struct {
	User            types.User
	MFASecret       string
	ProvisioningURI string
}

// LoginParams carries a login submission.
type LoginParams struct {
	Email    string
	Password string
	MFAToken string
	IP       string
}

// LoginResult is the outcome of one login submission. Fields beyond
// Outcome are populated per outcome: Redirect and User on success,
// Remaining on retry, MFASecret and ProvisioningURI on the setup branch.
type LoginResult struct {
	Outcome         LoginOutcome
	Redirect        string
	Remaining       int
	MFASecret       string
	ProvisioningURI string
	User            types.User
}

// AuthService orchestrates registration and the login state machine:
// credential check, MFA check, the enrollment branch, the lockout
// branch, and session establishment. All collaborators are explicit
// dependencies; there is no ambient shared state.
type AuthService struct {
	users       UserRepository
	accessLogs  AccessLogRepository
	hasher      *crypto.Hasher
	provisioner *mfa.Provisioner
	auditLog    *audit.Log
	logger      *zap.Logger
}

func NewAuthService(
	users UserRepository,
	accessLogs AccessLogRepository,
	hasher *crypto.Hasher,
	provisioner *mfa.Provisioner,
	auditLog *audit.Log,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		accessLogs:  accessLogs,
		hasher:      hasher,
		provisioner: provisioner,
		auditLog:    auditLog,
		logger:      logger,
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Register creates a new account. Duplicate emails are rejected with an
// exact, case-sensitive match before anything is written. On success the
// account gets its password hash, a fresh MFA secret, and a random
// content-encryption salt; the caller moves the user straight into the
// MFA enrollment view. MFA stays disabled until the first successful
// token verification at login.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	if !emailPattern.MatchString(params.Email) {
		return RegisterResult{}, ErrInvalidEmail
	}
	if err := ValidatePassword(params.Password); err != nil {
		return RegisterResult{}, err
	}

	_, err := s.users.GetByEmail(ctx, params.Email)
	if err == nil {
		return RegisterResult{}, ErrDuplicateAccount
	}
	if !errors.Is(err, store.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("check existing email: %w", err)
	}

	digest, err := s.hasher.Hash(params.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	secret, err := s.provisioner.GenerateSecret()
	if err != nil {
		return RegisterResult{}, err
	}

	salt, err := newContentSalt()
	if err != nil {
		return RegisterResult{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		PasswordHash: digest,
		MFASecret:    secret,
		MFAEnabled:   false,
		Role:         types.RoleEndUser,
		Active:       true,
		Salt:         salt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return RegisterResult{}, ErrDuplicateAccount
		}
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}

	if _, err := s.accessLogs.Create(ctx, types.AccessLog{
		UserID:       user.ID,
		RegisteredOn: time.Now(),
	}); err != nil {
		s.logger.Warn("create access log failed", zap.Int("user_id", user.ID), zap.Error(err))
	}

	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditRegistration,
		Email:    user.Email,
		Role:     string(user.Role),
		IP:       params.IP,
		Message:  "Successful Registration.",
	})

	uri, err := s.provisioner.ProvisioningURI(secret, user.Email)
	if err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{User: user, MFASecret: secret, ProvisioningURI: uri}, nil
}

// Login runs one submission through the authentication state machine and
// returns the outcome together with the session's next attempt state.
// The steps short-circuit in strict order: lockout, account lookup,
// password, MFA token. An unknown email is indistinguishable from a
// wrong password, and an inactive account fails the same way.
func (s *AuthService) Login(ctx context.Context, params LoginParams, state auth.AttemptState) (LoginResult, auth.AttemptState, error) {
	if state.Locked() {
		return LoginResult{Outcome: LoginLocked}, state, nil
	}

	user, err := s.users.GetByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, state, fmt.Errorf("look up account: %w", err)
	}
	credentialOK := err == nil && user.Active && s.hasher.Verify(user.PasswordHash, params.Password)

	if credentialOK {
		if s.provisioner.Verify(user.MFASecret, params.MFAToken) {
			// First successful MFA use activates enforcement, exactly once.
			if !user.MFAEnabled {
				user.MFAEnabled = true
				if user, err = s.users.Update(ctx, user); err != nil {
					return LoginResult{}, state, fmt.Errorf("enable mfa: %w", err)
				}
			}

			s.recordAccess(ctx, user, params.IP)
			s.auditLog.Record(ctx, types.AuditEvent{
				Category: types.AuditLoginSuccess,
				Email:    user.Email,
				Role:     string(user.Role),
				IP:       params.IP,
				Message:  "Successful Login.",
			})

			return LoginResult{
				Outcome:  LoginSuccess,
				Redirect: auth.Landing(user.Role),
				User:     user,
			}, state.Reset(), nil
		}

		if !user.MFAEnabled {
			uri, err := s.provisioner.ProvisioningURI(user.MFASecret, user.Email)
			if err != nil {
				return LoginResult{}, state, err
			}
			return LoginResult{
				Outcome:         LoginMFASetup,
				MFASecret:       user.MFASecret,
				ProvisioningURI: uri,
			}, state, nil
		}
	}

	state = state.RecordFailure()
	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditLoginFailure,
		Email:    params.Email,
		IP:       params.IP,
		Message:  fmt.Sprintf("Invalid Login Attempt (%d of %d).", state.Count, auth.LockoutThreshold),
	})

	if state.Locked() {
		s.auditLog.Record(ctx, types.AuditEvent{
			Severity: types.SeverityWarning,
			Category: types.AuditLockout,
			Email:    params.Email,
			IP:       params.IP,
			Message:  "Maximum login attempts reached. Session locked.",
		})
		return LoginResult{Outcome: LoginLocked}, state, nil
	}

	return LoginResult{Outcome: LoginRetry, Remaining: state.Remaining()}, state, nil
}

// Logout records the end of an authenticated session. Session teardown
// itself belongs to the session store.
func (s *AuthService) Logout(ctx context.Context, user types.User, ip string) {
	s.auditLog.Record(ctx, types.AuditEvent{
		Category: types.AuditLogout,
		Email:    user.Email,
		Role:     string(user.Role),
		IP:       ip,
		Message:  "Successful Log Out.",
	})
}

// recordAccess shifts latest login data to previous and stamps the new
// latest values. The row is created here if registration predates it.
// Failures are warnings: a history row must not block a valid login.
func (s *AuthService) recordAccess(ctx context.Context, user types.User, ip string) {
	log, err := s.accessLogs.GetByUserID(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		log, err = s.accessLogs.Create(ctx, types.AccessLog{
			UserID:       user.ID,
			RegisteredOn: time.Now(),
		})
	}
	if err != nil {
		s.logger.Warn("load access log failed", zap.Int("user_id", user.ID), zap.Error(err))
		return
	}

	now := time.Now()
	log.PreviousLogin = log.LatestLogin
	log.PreviousIP = log.LatestIP
	log.LatestLogin = &now
	log.LatestIP = &ip

	if _, err := s.accessLogs.Update(ctx, log); err != nil {
		s.logger.Warn("update access log failed", zap.Int("user_id", user.ID), zap.Error(err))
	}
}

// ValidatePassword enforces the registration password policy: 8 to 15
// characters with at least one uppercase letter, one lowercase letter,
// one digit, and one special character.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 15 {
		return fmt.Errorf("%w: must be between 8 and 15 characters", ErrWeakPassword)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("%w: must contain at least 1 uppercase letter", ErrWeakPassword)
	case !hasLower:
		return fmt.Errorf("%w: must contain at least 1 lowercase letter", ErrWeakPassword)
	case !hasDigit:
		return fmt.Errorf("%w: must contain at least 1 digit", ErrWeakPassword)
	case !hasSpecial:
		return fmt.Errorf("%w: must contain at least 1 special character", ErrWeakPassword)
	}
	return nil
}

func newContentSalt() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate content salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
