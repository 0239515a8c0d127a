package twofactor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/internal/store"
	"github.com/khanghh/supagate/model"
	"github.com/khanghh/supagate/params"
)

const setupTTL = params.TwoFactorSetupExpiration

// UserStore persists the two-factor record of a user.
type UserStore interface {
	EnableTwoFactor(ctx context.Context, userID uint, secret string, at time.Time) error
	DisableTwoFactor(ctx context.Context, userID uint) error
	TouchTwoFactorVerified(ctx context.Context, userID uint, at time.Time) error
}

// Subject is everything a two-factor operation observes about the current
// request. A nil User is a guest.
type Subject struct {
	User     *model.User
	Session  SessionStore
	Settings settings.Settings
}

func (sub Subject) IsGuest() bool {
	return sub.User == nil
}

func accountName(user *model.User) string {
	switch {
	case user.Username != "":
		return user.Username
	case user.Email != "":
		return user.Email
	}
	return strconv.FormatUint(uint64(user.ID), 10)
}

type TwoFactorService struct {
	userStore     UserStore
	attempts      *attemptStore
	maxAttempts   int
	attemptWindow time.Duration
	now           func() time.Time
}

type Option func(*TwoFactorService)

func WithClock(now func() time.Time) Option {
	return func(s *TwoFactorService) {
		s.now = now
	}
}

// WithAttemptLimit rejects code submissions once a user failed max times
// within window. A max of 0 disables the limit.
func WithAttemptLimit(storage store.Storage, max int, window time.Duration) Option {
	return func(s *TwoFactorService) {
		if max <= 0 || storage == nil {
			return
		}
		if window <= 0 {
			window = params.TwoFactorAttemptWindow
		}
		s.attempts = newAttemptStore(storage)
		s.maxAttempts = max
		s.attemptWindow = window
	}
}

func (s *TwoFactorService) checkAttempts(ctx context.Context, userID uint) error {
	if s.attempts == nil {
		return nil
	}
	count, err := s.attempts.FailCount(ctx, userID)
	if err != nil {
		return err
	}
	if count >= s.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *TwoFactorService) recordFailure(ctx context.Context, userID uint) {
	if s.attempts == nil {
		return
	}
	if _, err := s.attempts.IncreaseFailCount(ctx, userID, s.attemptWindow); err != nil {
		slog.Error("Could not record failed 2fa attempt", "userID", userID, "error", err)
	}
}

func (s *TwoFactorService) resetAttempts(ctx context.Context, userID uint) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Reset(ctx, userID); err != nil {
		slog.Error("Could not reset 2fa attempts", "userID", userID, "error", err)
	}
}

func (s *TwoFactorService) checkPreconditions(sub Subject) error {
	if !sub.Settings.Enable2FA {
		return ErrFeatureDisabled
	}
	if sub.IsGuest() {
		return ErrUnauthenticated
	}
	return nil
}

func NewTwoFactorService(userStore UserStore, opts ...Option) *TwoFactorService {
	s := &TwoFactorService{
		userStore: userStore,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
