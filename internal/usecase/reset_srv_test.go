package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"qwiken-auth/internal/data/entity"
	"qwiken-auth/internal/data/repository"
	"qwiken-auth/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOTPRepository keeps records in memory and evaluates the same
// predicates the SQL queries do.
type mockOTPRepository struct {
	records   map[uuid.UUID]*entity.PasswordResetOTP
	calls     int
	failMark  bool
	failWrite bool
}

func newMockOTPRepository() *mockOTPRepository {
	return &mockOTPRepository{records: make(map[uuid.UUID]*entity.PasswordResetOTP)}
}

func (m *mockOTPRepository) Create(ctx context.Context, otp *entity.PasswordResetOTP) error {
	m.calls++
	if m.failWrite {
		return errors.New("insert failed")
	}
	cp := *otp
	m.records[otp.ID] = &cp
	return nil
}

func (m *mockOTPRepository) DeleteExpired(ctx context.Context, email string) (int64, error) {
	m.calls++
	var deleted int64
	now := time.Now()
	for id, rec := range m.records {
		if rec.Email == email && rec.ExpiresAt.Before(now) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockOTPRepository) FindEligible(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error) {
	m.calls++
	now := time.Now()
	var newest *entity.PasswordResetOTP
	for _, rec := range m.records {
		if rec.Email == email && rec.OTPCode == otpCode &&
			rec.ExpiresAt.After(now) && rec.VerifiedAt == nil && !rec.IsUsed {
			if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
				newest = rec
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (m *mockOTPRepository) FindVerified(ctx context.Context, email, otpCode string) (*entity.PasswordResetOTP, error) {
	m.calls++
	now := time.Now()
	var newest *entity.PasswordResetOTP
	for _, rec := range m.records {
		if rec.Email == email && rec.OTPCode == otpCode &&
			rec.VerifiedAt != nil && rec.ExpiresAt.After(now) && !rec.IsUsed {
			if newest == nil || rec.VerifiedAt.After(*newest.VerifiedAt) {
				newest = rec
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (m *mockOTPRepository) MarkVerified(ctx context.Context, otpID uuid.UUID, at time.Time) error {
	m.calls++
	rec, ok := m.records[otpID]
	if !ok {
		return fmt.Errorf("OTP %s not found", otpID.String())
	}
	rec.VerifiedAt = &at
	return nil
}

func (m *mockOTPRepository) MarkUsed(ctx context.Context, otpID uuid.UUID) error {
	m.calls++
	if m.failMark {
		return errors.New("update failed")
	}
	rec, ok := m.records[otpID]
	if !ok {
		return fmt.Errorf("OTP %s not found", otpID.String())
	}
	rec.IsUsed = true
	return nil
}

type mockUserRepository struct {
	usersByEmail map[string]*entity.User
	calls        int
	failUpdate   bool
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{usersByEmail: make(map[string]*entity.User)}
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.calls++
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	m.calls++
	if m.failUpdate {
		return errors.New("provider rejected update")
	}
	for _, user := range m.usersByEmail {
		if user.ID == userID {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return fmt.Errorf("user %s not found", userID.String())
}

type mockDispatcher struct {
	sent []string
	fail bool
}

func (m *mockDispatcher) SendResetCode(ctx context.Context, to, userName, code string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, code)
	return nil
}

type resetFixture struct {
	svc        ResetService
	otps       *mockOTPRepository
	users      *mockUserRepository
	dispatcher *mockDispatcher
}

func newResetFixture() *resetFixture {
	otps := newMockOTPRepository()
	users := newMockUserRepository()
	dispatcher := &mockDispatcher{}

	repo := &repository.Repository{User: users, OTP: otps}
	config := &utils.Config{OTP: utils.OTPConfig{ExpiryMinutes: 10}}

	return &resetFixture{
		svc:        NewResetService(repo, dispatcher, config, zap.NewNop()),
		otps:       otps,
		users:      users,
		dispatcher: dispatcher,
	}
}

func (f *resetFixture) addUser(email string) *entity.User {
	user := &entity.User{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: time.Now()},
		FullName:     "Test User",
		Email:        email,
		PasswordHash: "old-hash",
		IsActive:     true,
	}
	f.users.usersByEmail[email] = user
	return user
}

func (f *resetFixture) issuedCode(t *testing.T) (*entity.PasswordResetOTP, string) {
	t.Helper()
	require.NotEmpty(t, f.otps.records)
	var newest *entity.PasswordResetOTP
	for _, rec := range f.otps.records {
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}
	return newest, newest.OTPCode
}

func TestIssue_PersistsAndSendsCode(t *testing.T) {
	f := newResetFixture()

	err := f.svc.Issue(context.Background(), "User@Example.com", "Maya")
	require.NoError(t, err)

	rec, code := f.issuedCode(t)
	assert.Equal(t, "user@example.com", rec.Email)
	assert.Len(t, code, 4)
	assert.GreaterOrEqual(t, code, "1000")
	assert.LessOrEqual(t, code, "9999")
	assert.False(t, rec.IsUsed)
	assert.Nil(t, rec.VerifiedAt)
	assert.Zero(t, rec.Attempts)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), rec.ExpiresAt, 5*time.Second)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, code, f.dispatcher.sent[0])
}

func TestIssue_TwiceKeepsBothLiveCodes(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))

	// No dedup of live codes: both rows persist with distinct ids.
	assert.Len(t, f.otps.records, 2)
	ids := make(map[uuid.UUID]bool)
	for id := range f.otps.records {
		ids[id] = true
	}
	assert.Len(t, ids, 2)
}

func TestIssue_CleansUpOnlyExpiredRows(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	stale := &entity.PasswordResetOTP{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)},
		Email:      "user@example.com",
		OTPCode:    "1111",
		ExpiresAt:  time.Now().Add(-50 * time.Minute),
	}
	live := &entity.PasswordResetOTP{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Minute)},
		Email:      "user@example.com",
		OTPCode:    "2222",
		ExpiresAt:  time.Now().Add(9 * time.Minute),
	}
	f.otps.records[stale.ID] = stale
	f.otps.records[live.ID] = live

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))

	_, staleLeft := f.otps.records[stale.ID]
	_, liveLeft := f.otps.records[live.ID]
	assert.False(t, staleLeft, "expired row should be deleted")
	assert.True(t, liveLeft, "still-valid row must survive a new issuance")
	assert.Len(t, f.otps.records, 2)
}

func TestIssue_SucceedsWhenEmailDispatchFails(t *testing.T) {
	f := newResetFixture()
	f.dispatcher.fail = true

	err := f.svc.Issue(context.Background(), "user@example.com", "")
	require.NoError(t, err, "issuance must survive a dead mail server")
	assert.Len(t, f.otps.records, 1)
}

func TestIssue_FailsWhenInsertFails(t *testing.T) {
	f := newResetFixture()
	f.otps.failWrite = true

	err := f.svc.Issue(context.Background(), "user@example.com", "")
	require.Error(t, err)
	assert.Empty(t, f.dispatcher.sent, "no email without a persisted code")
}

func TestVerify_SucceedsOncePerCode(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	rec, code := f.issuedCode(t)

	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code))
	assert.NotNil(t, f.otps.records[rec.ID].VerifiedAt)

	// Second verification of the same code must fail: verified_at is
	// no longer null, so the record is no longer eligible.
	err := f.svc.Verify(ctx, "user@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestVerify_WrongCode(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	_, code := f.issuedCode(t)

	wrong := "0000"
	if wrong == code {
		wrong = "0001"
	}
	err := f.svc.Verify(ctx, "user@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestVerify_ExpiredCode(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	expired := &entity.PasswordResetOTP{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)},
		Email:      "user@example.com",
		OTPCode:    "4821",
		ExpiresAt:  time.Now().Add(-50 * time.Minute),
	}
	f.otps.records[expired.ID] = expired

	err := f.svc.Verify(ctx, "user@example.com", "4821")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestReset_WeakPasswordPreemptsStoreAccess(t *testing.T) {
	f := newResetFixture()

	err := f.svc.Reset(context.Background(), "user@example.com", "4821", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.Zero(t, f.otps.calls, "store must not be touched for weak passwords")
	assert.Zero(t, f.users.calls)
}

func TestReset_FailsWithoutPriorVerification(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()
	f.addUser("user@example.com")

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	_, code := f.issuedCode(t)

	err := f.svc.Reset(ctx, "user@example.com", code, "newpass1")
	assert.ErrorIs(t, err, ErrOTPNotVerified)
}

func TestReset_FailsWithWrongCodeAfterVerification(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()
	f.addUser("user@example.com")

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	_, code := f.issuedCode(t)
	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code))

	wrong := "0000"
	if wrong == code {
		wrong = "0001"
	}
	err := f.svc.Reset(ctx, "user@example.com", wrong, "newpass1")
	assert.ErrorIs(t, err, ErrOTPNotVerified)
}

func TestReset_UserNotFound(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "ghost@example.com", ""))
	_, code := f.issuedCode(t)
	require.NoError(t, f.svc.Verify(ctx, "ghost@example.com", code))

	err := f.svc.Reset(ctx, "ghost@example.com", code, "newpass1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestReset_CredentialUpdateFailure(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()
	f.addUser("user@example.com")
	f.users.failUpdate = true

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	_, code := f.issuedCode(t)
	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code))

	err := f.svc.Reset(ctx, "user@example.com", code, "newpass1")
	assert.ErrorIs(t, err, ErrCredentialUpdate)

	rec, _ := f.issuedCode(t)
	assert.False(t, rec.IsUsed, "failed commit must not consume the code")
}

func TestReset_EndToEnd(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()
	user := f.addUser("user@example.com")

	require.NoError(t, f.svc.Issue(ctx, "User@Example.com", "Maya"))
	rec, code := f.issuedCode(t)

	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code))
	require.NoError(t, f.svc.Reset(ctx, "user@example.com", code, "newpass1"))

	assert.True(t, f.otps.records[rec.ID].IsUsed)
	assert.NotEqual(t, "old-hash", user.PasswordHash)
	assert.True(t, utils.CheckPasswordHash("newpass1", user.PasswordHash))

	// The consumed code is excluded from the eligibility query, so a
	// second commit with it must fail.
	err := f.svc.Reset(ctx, "user@example.com", code, "newpass2")
	assert.ErrorIs(t, err, ErrOTPNotVerified)
}

func TestReset_MarkUsedFailureIsNonFatal(t *testing.T) {
	f := newResetFixture()
	ctx := context.Background()
	user := f.addUser("user@example.com")
	f.otps.failMark = true

	require.NoError(t, f.svc.Issue(ctx, "user@example.com", ""))
	_, code := f.issuedCode(t)
	require.NoError(t, f.svc.Verify(ctx, "user@example.com", code))

	// The credential update already landed, so a failed consumption
	// mark is logged and swallowed.
	err := f.svc.Reset(ctx, "user@example.com", code, "newpass1")
	require.NoError(t, err)
	assert.True(t, utils.CheckPasswordHash("newpass1", user.PasswordHash))
}
