package twofactor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"
)

type Enrollment struct {
	Secret          string
	QRCode          string
	FactorID        string
	ProvisioningURI string
	ExpiresAt       time.Time
}

// Initiate starts an enrollment for the subject, replacing any enrollment
// already pending in its session.
func (s *TwoFactorService) Initiate(ctx context.Context, sub Subject) (*Enrollment, error) {
	if err := s.checkPreconditions(sub); err != nil {
		return nil, err
	}
	if sub.User.Has2FAEnabled {
		return nil, ErrAlreadyEnabled
	}

	prov, err := Provision(accountName(sub.User), sub.Settings.Issuer())
	if err != nil {
		return nil, err
	}
	factorID, err := generateFactorID()
	if err != nil {
		return nil, err
	}

	pending := PendingEnrollment{
		Secret:    prov.Secret,
		FactorID:  factorID,
		CreatedAt: s.now(),
	}
	sub.Session.Set(SessionKeySetup, pending)

	return &Enrollment{
		Secret:          prov.Secret,
		QRCode:          prov.QRCode,
		FactorID:        factorID,
		ProvisioningURI: prov.URI,
		ExpiresAt:       pending.ExpiresAt(),
	}, nil
}

// Confirm completes the pending enrollment identified by factorID. The user
// record is written before the session so a failed write leaves the pending
// enrollment in place.
func (s *TwoFactorService) Confirm(ctx context.Context, sub Subject, factorID, code string) error {
	if err := s.checkPreconditions(sub); err != nil {
		return err
	}
	if !isValidCodeFormat(code) {
		return ErrInvalidCodeFormat
	}

	pending, ok := getPendingEnrollment(sub.Session)
	if !ok || factorID == "" || subtle.ConstantTimeCompare([]byte(pending.FactorID), []byte(factorID)) != 1 {
		return ErrInvalidSetup
	}

	now := s.now()
	if now.Sub(pending.CreatedAt) > setupTTL {
		sub.Session.Delete(SessionKeySetup)
		return ErrSetupExpired
	}
	if sub.User.Has2FAEnabled {
		return ErrAlreadyEnabled
	}
	if err := s.checkAttempts(ctx, sub.User.ID); err != nil {
		return err
	}

	valid, err := Validate(code, pending.Secret, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if !valid {
		s.recordFailure(ctx, sub.User.ID)
		return ErrInvalidCode
	}

	if err := s.userStore.EnableTwoFactor(ctx, sub.User.ID, pending.Secret, now); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	sub.User.Has2FAEnabled = true
	sub.User.TwoFactorSecret = pending.Secret
	sub.User.TwoFactorEnabledAt = &now
	sub.User.TwoFactorLastVerifiedAt = &now

	sub.Session.Delete(SessionKeySetup)
	sub.Session.Set(SessionKeyVerified, true)
	s.resetAttempts(ctx, sub.User.ID)
	return nil
}
