package twofactor

import (
	"errors"
)

var (
	ErrFeatureDisabled      = errors.New("two-factor authentication is disabled")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrAlreadyEnabled       = errors.New("two-factor authentication already enabled")
	ErrNotEnrolled          = errors.New("two-factor authentication not enabled")
	ErrInvalidCodeFormat    = errors.New("code must be 6 digits")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrInvalidSetup         = errors.New("invalid or missing setup")
	ErrSetupExpired         = errors.New("setup expired")
	ErrInvalidConfiguration = errors.New("two-factor configuration is invalid")
	ErrVerificationRequired = errors.New("two-factor verification required")
	ErrTooManyAttempts      = errors.New("too many failed attempts")
	ErrEntropy              = errors.New("secure random source unavailable")
)
