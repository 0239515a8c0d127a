package twofactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/internal/store"
	"github.com/khanghh/supagate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSession map[string]any

func (m mapSession) Get(key string) any      { return m[key] }
func (m mapSession) Set(key string, val any) { m[key] = val }
func (m mapSession) Delete(key string)       { delete(m, key) }

type fakeUserStore struct {
	enabled    map[uint]string
	verifiedAt map[uint]time.Time
	disabled   []uint
	err        error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		enabled:    make(map[uint]string),
		verifiedAt: make(map[uint]time.Time),
	}
}

func (f *fakeUserStore) EnableTwoFactor(ctx context.Context, userID uint, secret string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.enabled[userID] = secret
	f.verifiedAt[userID] = at
	return nil
}

func (f *fakeUserStore) DisableTwoFactor(ctx context.Context, userID uint) error {
	if f.err != nil {
		return f.err
	}
	delete(f.enabled, userID)
	f.disabled = append(f.disabled, userID)
	return nil
}

func (f *fakeUserStore) TouchTwoFactorVerified(ctx context.Context, userID uint, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.verifiedAt[userID] = at
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var enabledSettings = settings.Settings{Enable2FA: true, ForumTitle: "Test Forum"}

func newTestSubject(user *model.User) Subject {
	return Subject{
		User:     user,
		Session:  mapSession{},
		Settings: enabledSettings,
	}
}

func newTestService(opts ...Option) (*TwoFactorService, *fakeUserStore, *fakeClock) {
	users := newFakeUserStore()
	clock := &fakeClock{now: stepStart.Add(5 * time.Second)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewTwoFactorService(users, opts...), users, clock
}

// wrongCode returns a well formed code that is not accepted at the given instant.
func wrongCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		ok, err := Validate(candidate, secret, at)
		require.NoError(t, err)
		if !ok {
			return candidate
		}
	}
	t.Fatal("no rejected code candidate")
	return ""
}

func enrolledUser(t *testing.T, at time.Time) *model.User {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	enabledAt := at.Add(-time.Hour)
	return &model.User{
		ID:                 7,
		Username:           "alice",
		Has2FAEnabled:      true,
		TwoFactorSecret:    secret,
		TwoFactorEnabledAt: &enabledAt,
	}
}

func TestInitiatePreconditions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sub := newTestSubject(nil)
	sub.Settings.Enable2FA = false
	_, err := svc.Initiate(ctx, sub)
	assert.ErrorIs(t, err, ErrFeatureDisabled)

	_, err = svc.Initiate(ctx, newTestSubject(nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Initiate(ctx, newTestSubject(enrolledUser(t, stepStart)))
	assert.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestEnrollmentHappyPath(t *testing.T) {
	svc, users, clock := newTestService()
	ctx := context.Background()
	user := &model.User{ID: 1, Username: "alice"}
	sub := newTestSubject(user)

	enrollment, err := svc.Initiate(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, enrollment.FactorID, 32)
	assert.Equal(t, clock.now.Add(15*time.Minute), enrollment.ExpiresAt)

	pending, ok := getPendingEnrollment(sub.Session)
	require.True(t, ok)
	assert.Equal(t, enrollment.Secret, pending.Secret)
	assert.Equal(t, enrollment.FactorID, pending.FactorID)

	clock.Advance(40 * time.Second)
	code, err := GenerateCode(enrollment.Secret, clock.now)
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, sub, enrollment.FactorID, code))

	assert.Equal(t, enrollment.Secret, users.enabled[1])
	assert.True(t, user.Has2FAEnabled)
	assert.Equal(t, enrollment.Secret, user.TwoFactorSecret)
	require.NotNil(t, user.TwoFactorEnabledAt)
	assert.True(t, IsSessionVerified(sub.Session))
	assert.Nil(t, sub.Session.Get(SessionKeySetup))
}

func TestConfirmRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid format is checked first", func(t *testing.T) {
		svc, _, _ := newTestService()
		sub := newTestSubject(&model.User{ID: 1, Username: "alice"})
		assert.ErrorIs(t, svc.Confirm(ctx, sub, "whatever", "12ab56"), ErrInvalidCodeFormat)
	})

	t.Run("no pending enrollment", func(t *testing.T) {
		svc, _, _ := newTestService()
		sub := newTestSubject(&model.User{ID: 1, Username: "alice"})
		assert.ErrorIs(t, svc.Confirm(ctx, sub, "abc", "123456"), ErrInvalidSetup)
	})

	t.Run("factor id mismatch keeps the pending enrollment", func(t *testing.T) {
		svc, _, clock := newTestService()
		sub := newTestSubject(&model.User{ID: 1, Username: "alice"})
		enrollment, err := svc.Initiate(ctx, sub)
		require.NoError(t, err)

		code, err := GenerateCode(enrollment.Secret, clock.now)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Confirm(ctx, sub, "deadbeef", code), ErrInvalidSetup)
		assert.ErrorIs(t, svc.Confirm(ctx, sub, "", code), ErrInvalidSetup)
		_, ok := getPendingEnrollment(sub.Session)
		assert.True(t, ok)
	})

	t.Run("invalid code keeps the pending enrollment", func(t *testing.T) {
		svc, users, clock := newTestService()
		sub := newTestSubject(&model.User{ID: 1, Username: "alice"})
		enrollment, err := svc.Initiate(ctx, sub)
		require.NoError(t, err)

		err = svc.Confirm(ctx, sub, enrollment.FactorID, wrongCode(t, enrollment.Secret, clock.now))
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Empty(t, users.enabled)
		assert.False(t, IsSessionVerified(sub.Session))

		code, err := GenerateCode(enrollment.Secret, clock.now)
		require.NoError(t, err)
		assert.NoError(t, svc.Confirm(ctx, sub, enrollment.FactorID, code))
	})

	t.Run("store failure leaves the session untouched", func(t *testing.T) {
		svc, users, clock := newTestService()
		users.err = errors.New("db down")
		user := &model.User{ID: 1, Username: "alice"}
		sub := newTestSubject(user)
		enrollment, err := svc.Initiate(ctx, sub)
		require.NoError(t, err)

		code, err := GenerateCode(enrollment.Secret, clock.now)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Confirm(ctx, sub, enrollment.FactorID, code), users.err)
		assert.False(t, user.Has2FAEnabled)
		assert.False(t, IsSessionVerified(sub.Session))
		_, ok := getPendingEnrollment(sub.Session)
		assert.True(t, ok)
	})
}

func TestConfirmExpiry(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		elapsed time.Duration
		wantErr error
	}{
		{899 * time.Second, nil},
		{900 * time.Second, nil},
		{901 * time.Second, ErrSetupExpired},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			svc, _, clock := newTestService()
			sub := newTestSubject(&model.User{ID: 1, Username: "alice"})
			enrollment, err := svc.Initiate(ctx, sub)
			require.NoError(t, err)

			clock.Advance(tt.elapsed)
			code, err := GenerateCode(enrollment.Secret, clock.now)
			require.NoError(t, err)
			err = svc.Confirm(ctx, sub, enrollment.FactorID, code)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			_, ok := getPendingEnrollment(sub.Session)
			assert.False(t, ok)
			assert.ErrorIs(t, svc.Confirm(ctx, sub, enrollment.FactorID, code), ErrInvalidSetup)
		})
	}
}

func TestInitiateSupersedesPending(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	sub := newTestSubject(&model.User{ID: 1, Username: "alice"})

	first, err := svc.Initiate(ctx, sub)
	require.NoError(t, err)
	second, err := svc.Initiate(ctx, sub)
	require.NoError(t, err)
	assert.NotEqual(t, first.FactorID, second.FactorID)
	assert.NotEqual(t, first.Secret, second.Secret)

	code, err := GenerateCode(first.Secret, clock.now)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Confirm(ctx, sub, first.FactorID, code), ErrInvalidSetup)

	code, err = GenerateCode(second.Secret, clock.now)
	require.NoError(t, err)
	assert.NoError(t, svc.Confirm(ctx, sub, second.FactorID, code))
}

func TestVerifyLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("not enrolled", func(t *testing.T) {
		svc, _, _ := newTestService()
		sub := newTestSubject(&model.User{ID: 1})
		assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, "123456"), ErrNotEnrolled)
	})

	t.Run("enrolled without secret", func(t *testing.T) {
		svc, _, _ := newTestService()
		sub := newTestSubject(&model.User{ID: 1, Has2FAEnabled: true})
		assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, "123456"), ErrInvalidConfiguration)
	})

	t.Run("valid code may be reused within its window", func(t *testing.T) {
		svc, users, clock := newTestService()
		user := enrolledUser(t, clock.now)
		sub := newTestSubject(user)

		code, err := GenerateCode(user.TwoFactorSecret, clock.now)
		require.NoError(t, err)
		require.NoError(t, svc.VerifyLogin(ctx, sub, code))
		assert.True(t, IsSessionVerified(sub.Session))
		assert.Equal(t, clock.now, users.verifiedAt[user.ID])
		require.NotNil(t, user.TwoFactorLastVerifiedAt)

		clock.Advance(20 * time.Second)
		assert.NoError(t, svc.VerifyLogin(ctx, sub, code))
	})

	t.Run("stale code is rejected", func(t *testing.T) {
		svc, _, clock := newTestService()
		user := enrolledUser(t, clock.now)
		sub := newTestSubject(user)

		code, err := GenerateCode(user.TwoFactorSecret, clock.now.Add(-10*time.Minute))
		require.NoError(t, err)
		if ok, _ := Validate(code, user.TwoFactorSecret, clock.now); ok {
			t.Skip("stale code collides with a current one")
		}
		assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, code), ErrInvalidCode)
		assert.False(t, IsSessionVerified(sub.Session))
	})

	t.Run("feature disabled", func(t *testing.T) {
		svc, _, _ := newTestService()
		sub := newTestSubject(enrolledUser(t, stepStart))
		sub.Settings.Enable2FA = false
		assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, "123456"), ErrFeatureDisabled)
	})
}

func TestDisable(t *testing.T) {
	ctx := context.Background()
	svc, users, clock := newTestService()
	user := enrolledUser(t, clock.now)
	sub := newTestSubject(user)

	assert.ErrorIs(t, svc.Disable(ctx, sub), ErrVerificationRequired)
	assert.True(t, user.Has2FAEnabled)

	sub.Session.Set(SessionKeyVerified, true)
	sub.Session.Set(SessionKeySetup, PendingEnrollment{Secret: "X", FactorID: "y", CreatedAt: clock.now})
	require.NoError(t, svc.Disable(ctx, sub))

	assert.Equal(t, []uint{user.ID}, users.disabled)
	assert.False(t, user.Has2FAEnabled)
	assert.Empty(t, user.TwoFactorSecret)
	assert.Nil(t, user.TwoFactorEnabledAt)
	assert.False(t, IsSessionVerified(sub.Session))
	assert.Nil(t, sub.Session.Get(SessionKeySetup))

	assert.ErrorIs(t, svc.Disable(ctx, sub), ErrNotEnrolled)

	enrollment, err := svc.Initiate(ctx, sub)
	require.NoError(t, err)
	assert.NotEqual(t, "X", enrollment.Secret)
}

// newThrottledService shares the fake clock between the service and its attempt store.
func newThrottledService(limit int, window time.Duration) (*TwoFactorService, *fakeClock) {
	clock := &fakeClock{now: stepStart.Add(5 * time.Second)}
	storage := store.NewMemoryStorage(store.WithMemoryClock(clock.Now), store.WithGCInterval(0))
	return NewTwoFactorService(newFakeUserStore(), WithClock(clock.Now), WithAttemptLimit(storage, limit, window)), clock
}

func TestAttemptLimit(t *testing.T) {
	ctx := context.Background()
	svc, clock := newThrottledService(2, time.Minute)
	user := enrolledUser(t, clock.now)
	sub := newTestSubject(user)

	bad := wrongCode(t, user.TwoFactorSecret, clock.now)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)

	code, err := GenerateCode(user.TwoFactorSecret, clock.now)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, code), ErrTooManyAttempts)
	assert.False(t, IsSessionVerified(sub.Session))
}

func TestAttemptWindowExpires(t *testing.T) {
	ctx := context.Background()
	svc, clock := newThrottledService(2, time.Minute)
	user := enrolledUser(t, clock.now)
	sub := newTestSubject(user)

	bad := wrongCode(t, user.TwoFactorSecret, clock.now)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrTooManyAttempts)

	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrTooManyAttempts)

	clock.Advance(time.Second)
	code, err := GenerateCode(user.TwoFactorSecret, clock.now)
	require.NoError(t, err)
	assert.NoError(t, svc.VerifyLogin(ctx, sub, code))
}

func TestAttemptCounterResetsOnSuccess(t *testing.T) {
	ctx := context.Background()
	svc, clock := newThrottledService(2, time.Minute)
	user := enrolledUser(t, clock.now)
	sub := newTestSubject(user)

	bad := wrongCode(t, user.TwoFactorSecret, clock.now)
	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)

	code, err := GenerateCode(user.TwoFactorSecret, clock.now)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyLogin(ctx, sub, code))

	assert.ErrorIs(t, svc.VerifyLogin(ctx, sub, bad), ErrInvalidCode)
	assert.NoError(t, svc.VerifyLogin(ctx, sub, code))
}

func TestStatus(t *testing.T) {
	svc, _, clock := newTestService()

	_, err := svc.Status(newTestSubject(nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user := enrolledUser(t, clock.now)
	user.IsAdmin = true
	sub := newTestSubject(user)
	sub.Settings.Require2FA = true
	sub.Session.Set(SessionKeyVerified, true)

	status, err := svc.Status(sub)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.True(t, status.Verified)
	assert.True(t, status.Required)
	assert.Equal(t, user.TwoFactorEnabledAt, status.EnabledAt)
}

func TestIsRequired(t *testing.T) {
	s := settings.Settings{Enable2FA: true, Require2FA: true}
	member := &model.User{ID: 2}
	mandated := &model.User{ID: 3, Permissions: []model.UserPermission{{Name: "supabase.require2fa"}}}

	assert.False(t, IsRequired(nil, s))
	assert.False(t, IsRequired(member, s))
	assert.True(t, IsRequired(mandated, s))
	assert.True(t, IsRequired(&model.User{ID: 4, IsAdmin: true}, s))
	assert.False(t, IsRequired(mandated, settings.Settings{Enable2FA: true}))
}
