package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/auth"
	"github.com/secureblog/apiserver/internal/crypto"
	"github.com/secureblog/apiserver/internal/mfa"
	"github.com/secureblog/apiserver/internal/store"
	"github.com/secureblog/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

type memAccessLogRepo struct {
	mu   sync.Mutex
	logs map[int]types.AccessLog
}

func newMemAccessLogRepo() *memAccessLogRepo {
	return &memAccessLogRepo{logs: map[int]types.AccessLog{}}
}

func (m *memAccessLogRepo) GetByUserID(_ context.Context, userID int) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[userID]
	if !ok {
		return types.AccessLog{}, store.ErrNotFound
	}
	return log, nil
}

func (m *memAccessLogRepo) Create(_ context.Context, log types.AccessLog) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = len(m.logs) + 1
	m.logs[log.UserID] = log
	return log, nil
}

func (m *memAccessLogRepo) Update(_ context.Context, log types.AccessLog) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.UserID] = log
	return log, nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []types.AuditEvent
}

func (m *memAuditRepo) Append(_ context.Context, event types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAuditRepo) recorded() []types.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AuditEvent(nil), m.events...)
}

type authFixture struct {
	service    *AuthService
	users      *memUserRepo
	accessLogs *memAccessLogRepo
	audits     *memAuditRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newMemUserRepo()
	accessLogs := newMemAccessLogRepo()
	audits := &memAuditRepo{}
	logger := zap.NewNop()

	service := NewAuthService(
		users,
		accessLogs,
		crypto.NewHasher(),
		mfa.NewProvisioner("Secure Blog"),
		audit.New(logger, audits, nil, ""),
		logger,
	)
	return &authFixture{service: service, users: users, accessLogs: accessLogs, audits: audits}
}

func (f *authFixture) register(t *testing.T, email, password string) RegisterResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), RegisterParams{
		Email:     email,
		FirstName: "Alice",
		LastName:  "Author",
		Phone:     "555-0100",
		Password:  password,
		IP:        "127.0.0.1",
	})
	require.NoError(t, err)
	return result
}

func currentToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return token
}

func TestRegister_CreatesAccountWithEnrollmentData(t *testing.T) {
	f := newAuthFixture(t)

	result := f.register(t, "alice@example.com", "Str0ng!Pass")

	require.NotZero(t, result.User.ID)
	require.Equal(t, types.RoleEndUser, result.User.Role)
	require.True(t, result.User.Active)
	require.False(t, result.User.MFAEnabled)
	require.NotEmpty(t, result.MFASecret)
	require.Contains(t, result.ProvisioningURI, "otpauth://totp/")
	require.NotEmpty(t, result.User.Salt)
	require.NotEqual(t, "Str0ng!Pass", result.User.PasswordHash)

	_, err := f.accessLogs.GetByUserID(context.Background(), result.User.ID)
	require.NoError(t, err)

	events := f.audits.recorded()
	require.Len(t, events, 1)
	require.Equal(t, types.AuditRegistration, events[0].Category)
	require.Equal(t, "Successful Registration.", events[0].Message)
}

func TestRegister_RejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice@example.com", "Str0ng!Pass")

	_, err := f.service.Register(context.Background(), RegisterParams{
		Email:     "alice@example.com",
		FirstName: "Mallory",
		LastName:  "Clone",
		Phone:     "555-0101",
		Password:  "An0ther!Pass",
	})
	require.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestRegister_RejectsMalformedEmail(t *testing.T) {
	f := newAuthFixture(t)

	for _, email := range []string{"", "plain", "no@tld", "@example.com", "a b@example.com"} {
		_, err := f.service.Register(context.Background(), RegisterParams{
			Email:     email,
			FirstName: "Alice",
			LastName:  "Author",
			Phone:     "555-0100",
			Password:  "Str0ng!Pass",
		})
		require.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("Str0ng!Pass"))

	for _, password := range []string{
		"Sh0r!t",              // too short
		"Th1s!PasswordIsLong", // too long
		"str0ng!pass",         // no uppercase
		"STR0NG!PASS",         // no lowercase
		"Strong!Pass",         // no digit
		"Str0ngPass1",         // no special character
	} {
		require.ErrorIs(t, ValidatePassword(password), ErrWeakPassword, "password %q", password)
	}
}

func TestLogin_SuccessEnablesMFAOnce(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	result, state, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: currentToken(t, reg.MFASecret),
		IP:       "127.0.0.1",
	}, auth.AttemptState{Count: 2})
	require.NoError(t, err)

	require.Equal(t, LoginSuccess, result.Outcome)
	require.Equal(t, auth.DestPosts, result.Redirect)
	require.True(t, result.User.MFAEnabled)
	require.Equal(t, 0, state.Count)

	stored, err := f.users.GetByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	require.True(t, stored.MFAEnabled)

	log, err := f.accessLogs.GetByUserID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, log.LatestLogin)
	require.NotNil(t, log.LatestIP)
	require.Equal(t, "127.0.0.1", *log.LatestIP)
	require.Nil(t, log.PreviousLogin)
}

func TestLogin_SecondLoginShiftsAccessHistory(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	login := func(ip string) {
		_, _, err := f.service.Login(context.Background(), LoginParams{
			Email:    "alice@example.com",
			Password: "Str0ng!Pass",
			MFAToken: currentToken(t, reg.MFASecret),
			IP:       ip,
		}, auth.AttemptState{})
		require.NoError(t, err)
	}

	login("10.0.0.1")
	login("10.0.0.2")

	log, err := f.accessLogs.GetByUserID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, log.PreviousIP)
	require.Equal(t, "10.0.0.1", *log.PreviousIP)
	require.Equal(t, "10.0.0.2", *log.LatestIP)
}

func TestLogin_WrongTokenBeforeEnrollmentCostsNoAttempt(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	result, state, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: "000000",
	}, auth.AttemptState{})
	require.NoError(t, err)

	require.Equal(t, LoginMFASetup, result.Outcome)
	require.Equal(t, reg.MFASecret, result.MFASecret)
	require.Contains(t, result.ProvisioningURI, "otpauth://totp/")
	require.Equal(t, 0, state.Count)
}

func TestLogin_WrongTokenAfterEnrollmentCostsAttempt(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	// Enroll: one successful login flips enforcement on.
	_, _, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: currentToken(t, reg.MFASecret),
	}, auth.AttemptState{})
	require.NoError(t, err)

	result, state, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: "000000",
	}, auth.AttemptState{})
	require.NoError(t, err)

	require.Equal(t, LoginRetry, result.Outcome)
	require.Equal(t, 2, result.Remaining)
	require.Equal(t, 1, state.Count)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice@example.com", "Str0ng!Pass")

	wrongPassword, stateA, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Wr0ng!Pass",
	}, auth.AttemptState{})
	require.NoError(t, err)

	unknownEmail, stateB, err := f.service.Login(context.Background(), LoginParams{
		Email:    "nobody@example.com",
		Password: "Str0ng!Pass",
	}, auth.AttemptState{})
	require.NoError(t, err)

	require.Equal(t, wrongPassword.Outcome, unknownEmail.Outcome)
	require.Equal(t, wrongPassword.Remaining, unknownEmail.Remaining)
	require.Equal(t, stateA.Count, stateB.Count)
}

func TestLogin_InactiveAccountFailsLikeBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	stored, err := f.users.GetByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	stored.Active = false
	_, err = f.users.Update(context.Background(), stored)
	require.NoError(t, err)

	result, state, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: currentToken(t, reg.MFASecret),
	}, auth.AttemptState{})
	require.NoError(t, err)

	require.Equal(t, LoginRetry, result.Outcome)
	require.Equal(t, 1, state.Count)
}

func TestLogin_LocksAfterThreeFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice@example.com", "Str0ng!Pass")

	state := auth.AttemptState{}
	var result LoginResult
	var err error
	for i := 0; i < 3; i++ {
		result, state, err = f.service.Login(context.Background(), LoginParams{
			Email:    "alice@example.com",
			Password: "Wr0ng!Pass",
		}, state)
		require.NoError(t, err)
	}

	require.Equal(t, LoginLocked, result.Outcome)
	require.True(t, state.Locked())

	events := f.audits.recorded()
	last := events[len(events)-1]
	require.Equal(t, types.AuditLockout, last.Category)
	require.Equal(t, "Maximum login attempts reached. Session locked.", last.Message)
}

func TestLogin_LockedShortCircuitsEvenWithValidCredentials(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	locked := auth.AttemptState{Count: auth.LockoutThreshold}
	result, state, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: currentToken(t, reg.MFASecret),
	}, locked)
	require.NoError(t, err)

	require.Equal(t, LoginLocked, result.Outcome)
	require.True(t, state.Locked())
}

func TestLogin_ResetStateRestoresLogin(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	locked := auth.AttemptState{Count: auth.LockoutThreshold}
	result, _, err := f.service.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		MFAToken: currentToken(t, reg.MFASecret),
	}, locked.Reset())
	require.NoError(t, err)

	require.Equal(t, LoginSuccess, result.Outcome)
}

func TestLogin_RedirectsByRole(t *testing.T) {
	tests := []struct {
		role     types.Role
		redirect string
	}{
		{types.RoleEndUser, auth.DestPosts},
		{types.RoleDBAdmin, auth.DestAdmin},
		{types.RoleSecAdmin, auth.DestSecurity},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			f := newAuthFixture(t)
			reg := f.register(t, "user@example.com", "Str0ng!Pass")

			stored, err := f.users.GetByID(context.Background(), reg.User.ID)
			require.NoError(t, err)
			stored.Role = tt.role
			_, err = f.users.Update(context.Background(), stored)
			require.NoError(t, err)

			result, _, err := f.service.Login(context.Background(), LoginParams{
				Email:    "user@example.com",
				Password: "Str0ng!Pass",
				MFAToken: currentToken(t, reg.MFASecret),
			}, auth.AttemptState{})
			require.NoError(t, err)

			require.Equal(t, LoginSuccess, result.Outcome)
			require.Equal(t, tt.redirect, result.Redirect)
		})
	}
}

func TestLogout_RecordsAuditEvent(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "alice@example.com", "Str0ng!Pass")

	f.service.Logout(context.Background(), reg.User, "127.0.0.1")

	events := f.audits.recorded()
	last := events[len(events)-1]
	require.Equal(t, types.AuditLogout, last.Category)
	require.Equal(t, "Successful Log Out.", last.Message)
}
