package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/auth"
	"github.com/khanghh/supagate/internal/jsonapi"
	"github.com/khanghh/supagate/internal/middlewares/twofa"
	"github.com/khanghh/supagate/internal/twofactor"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/params"
)

var (
	ErrTwoFADisabled = jsonapi.NewError(fiber.StatusForbidden, "2fa_disabled",
		"Two-Factor Authentication Disabled", "Two-factor authentication is not enabled for this forum.")
	ErrAlreadyEnabled = jsonapi.NewError(fiber.StatusConflict, "2fa_already_enabled",
		"2FA Already Enabled", "Two-factor authentication is already set up. Disable it before setting it up again.")
	ErrCodeFormat = jsonapi.NewError(fiber.StatusBadRequest, "invalid_code",
		"Invalid Code", "The verification code must be 6 digits.").WithPointer("/code")
	ErrInvalidCode = jsonapi.NewError(fiber.StatusBadRequest, "invalid_code",
		"Invalid Code", "The verification code is incorrect. Please try again with a new code.").WithPointer("/code")
	ErrInvalidSetup = jsonapi.NewError(fiber.StatusBadRequest, "invalid_setup",
		"Invalid Setup", "The 2FA setup session has expired or is invalid. Please try again.")
	ErrSetupExpired = jsonapi.NewError(fiber.StatusBadRequest, "setup_expired",
		"Setup Expired", "The 2FA setup has expired. Please try again.")
	ErrNotEnrolled = jsonapi.NewError(fiber.StatusBadRequest, "2fa_not_enabled",
		"2FA Not Enabled", "You have not set up two-factor authentication.")
	ErrInvalidConfiguration = jsonapi.NewError(fiber.StatusInternalServerError, "invalid_configuration",
		"Invalid Configuration", "Your two-factor authentication configuration is invalid. Please contact an administrator.")
	ErrTooManyAttempts = jsonapi.NewError(fiber.StatusTooManyRequests, "too_many_attempts",
		"Too Many Attempts", "Too many incorrect codes were submitted. Please wait before trying again.")
	ErrInvalidToken = jsonapi.NewError(fiber.StatusUnauthorized, "invalid_token",
		"Invalid Token", "The provided token is invalid or has expired.")
	ErrMissingToken = jsonapi.NewError(fiber.StatusBadRequest, "invalid_request",
		"Missing Token", "No authentication token provided.").WithPointer("/accessToken")
	ErrEmailTaken = jsonapi.NewError(fiber.StatusConflict, "email_taken",
		"Email Taken", "Another account already uses the email address of this identity.")
	ErrMissingEmail = jsonapi.NewError(fiber.StatusUnprocessableEntity, "email_required",
		"Email Required", "The identity must have an email address to join the forum.")
	ErrMissingProvider = jsonapi.NewError(fiber.StatusBadRequest, "missing_provider",
		"Missing Provider", "No provider specified to disconnect.").WithPointer("/provider")
	ErrUnknownSyncAction = jsonapi.NewError(fiber.StatusBadRequest, "invalid_action",
		"Invalid Action", "The sync action must be sync-all or sync-user.").WithPointer("/action")
	ErrSupabaseUnavailable = jsonapi.NewError(fiber.StatusServiceUnavailable, "supabase_unavailable",
		"Supabase Unavailable", "The Supabase admin API is not configured.")
	ErrSupabaseRequest = jsonapi.NewError(fiber.StatusBadGateway, "supabase_error",
		"Supabase Error", "The Supabase admin API request failed.")
	ErrUserNotFound = jsonapi.NewError(fiber.StatusNotFound, "user_not_found",
		"User Not Found", "No forum user is linked to this Supabase identity.")
	ErrUpstreamUnavailable = jsonapi.NewError(fiber.StatusBadGateway, "bad_gateway",
		"Bad Gateway", "The forum could not be reached.")
)

var errorTable = []struct {
	err    error
	apiErr *jsonapi.Error
}{
	{twofactor.ErrFeatureDisabled, ErrTwoFADisabled},
	{twofactor.ErrUnauthenticated, jsonapi.ErrUnauthorized},
	{twofactor.ErrAlreadyEnabled, ErrAlreadyEnabled},
	{twofactor.ErrInvalidCodeFormat, ErrCodeFormat},
	{twofactor.ErrInvalidCode, ErrInvalidCode},
	{twofactor.ErrInvalidSetup, ErrInvalidSetup},
	{twofactor.ErrSetupExpired, ErrSetupExpired},
	{twofactor.ErrNotEnrolled, ErrNotEnrolled},
	{twofactor.ErrInvalidConfiguration, ErrInvalidConfiguration},
	{twofactor.ErrTooManyAttempts, ErrTooManyAttempts},
	{twofactor.ErrVerificationRequired, twofa.ErrVerificationRequired.WithLink("verify", params.TwoFactorVerifyPath)},
	{auth.ErrMissingToken, ErrMissingToken},
	{auth.ErrInvalidToken, ErrInvalidToken},
	{auth.ErrMissingSubject, ErrInvalidToken},
	{users.ErrInvalidSupabaseID, ErrInvalidToken},
	{users.ErrEmailRegistered, ErrEmailTaken},
	{users.ErrMissingEmail, ErrMissingEmail},
	{users.ErrUserNotFound, ErrUserNotFound},
	{auth.ErrAdminUnavailable, ErrSupabaseUnavailable},
	{auth.ErrSupabaseUserNotFound, ErrUserNotFound},
	{auth.ErrAdminRequestFailed, ErrSupabaseRequest},
}

// toAPIError maps a service error to its JSON:API error object.
func toAPIError(ctx *fiber.Ctx, err error) *jsonapi.Error {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			if errors.Is(err, twofactor.ErrInvalidConfiguration) {
				slog.Error("Invalid two-factor configuration", "path", ctx.Path(), "error", err)
			}
			return entry.apiErr
		}
	}
	slog.Error("Request failed", "path", ctx.Path(), "error", err)
	return jsonapi.ErrInternal
}
