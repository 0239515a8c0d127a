package twofactor

import (
	"context"
	"fmt"
	"time"

	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/model"
	"github.com/khanghh/supagate/params"
)

type Status struct {
	Enabled        bool       `json:"enabled"`
	Verified       bool       `json:"verified"`
	Required       bool       `json:"required"`
	EnabledAt      *time.Time `json:"enabledAt,omitempty"`
	LastVerifiedAt *time.Time `json:"lastVerifiedAt,omitempty"`
}

// IsRequired reports whether the forum mandates a second factor for user.
func IsRequired(user *model.User, s settings.Settings) bool {
	if user == nil || !s.Enable2FA || !s.Require2FA {
		return false
	}
	return user.HasPermission(params.PermissionRequire2FA)
}

// VerifyLogin checks a code against the enrolled secret and marks the
// session verified. A code stays valid for its whole window and may be
// submitted more than once.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, sub Subject, code string) error {
	if err := s.checkPreconditions(sub); err != nil {
		return err
	}
	if !isValidCodeFormat(code) {
		return ErrInvalidCodeFormat
	}
	if !sub.User.Has2FAEnabled {
		return ErrNotEnrolled
	}
	if sub.User.TwoFactorSecret == "" {
		return ErrInvalidConfiguration
	}
	if err := s.checkAttempts(ctx, sub.User.ID); err != nil {
		return err
	}

	now := s.now()
	valid, err := Validate(code, sub.User.TwoFactorSecret, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if !valid {
		s.recordFailure(ctx, sub.User.ID)
		return ErrInvalidCode
	}

	if err := s.userStore.TouchTwoFactorVerified(ctx, sub.User.ID, now); err != nil {
		return fmt.Errorf("update last verification: %w", err)
	}
	sub.User.TwoFactorLastVerifiedAt = &now
	sub.Session.Set(SessionKeyVerified, true)
	s.resetAttempts(ctx, sub.User.ID)
	return nil
}

// Disable removes the second factor of a user whose session is verified.
func (s *TwoFactorService) Disable(ctx context.Context, sub Subject) error {
	if err := s.checkPreconditions(sub); err != nil {
		return err
	}
	if !sub.User.Has2FAEnabled {
		return ErrNotEnrolled
	}
	if !IsSessionVerified(sub.Session) {
		return ErrVerificationRequired
	}

	if err := s.userStore.DisableTwoFactor(ctx, sub.User.ID); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	sub.User.Has2FAEnabled = false
	sub.User.TwoFactorSecret = ""
	sub.User.TwoFactorEnabledAt = nil
	sub.User.TwoFactorLastVerifiedAt = nil

	sub.Session.Delete(SessionKeySetup)
	sub.Session.Delete(SessionKeyVerified)
	return nil
}

func (s *TwoFactorService) Status(sub Subject) (*Status, error) {
	if sub.IsGuest() {
		return nil, ErrUnauthenticated
	}
	return &Status{
		Enabled:        sub.User.Has2FAEnabled,
		Verified:       IsSessionVerified(sub.Session),
		Required:       IsRequired(sub.User, sub.Settings),
		EnabledAt:      sub.User.TwoFactorEnabledAt,
		LastVerifiedAt: sub.User.TwoFactorLastVerifiedAt,
	}, nil
}
