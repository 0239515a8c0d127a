package twofactor

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/khanghh/supagate/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var validateOpts = totp.ValidateOpts{
	Period:    params.TwoFactorPeriod,
	Skew:      params.TwoFactorSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret returns a fresh base32 secret without padding.
func GenerateSecret() (string, error) {
	raw := make([]byte, params.TwoFactorSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app consumes.
func ProvisioningURI(secret, account, issuer string) (string, error) {
	if issuer == "" {
		issuer = params.DefaultIssuer
	}
	raw, err := secretEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      params.TwoFactorPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

func isValidCodeFormat(code string) bool {
	if len(code) != params.TwoFactorCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Validate checks code against secret at the given instant, accepting one
// time step on either side.
func Validate(code, secret string, at time.Time) (bool, error) {
	if !isValidCodeFormat(code) {
		return false, ErrInvalidCodeFormat
	}
	return totp.ValidateCustom(code, secret, at.UTC(), validateOpts)
}

func GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), validateOpts)
}
