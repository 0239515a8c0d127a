package auth

import "errors"

var (
	ErrMissingToken   = errors.New("missing access token")
	ErrInvalidToken   = errors.New("invalid access token")
	ErrMissingSubject = errors.New("access token has no subject")
	ErrMisconfigured  = errors.New("supabase jwt secret is not configured")

	ErrAdminUnavailable     = errors.New("supabase admin api is not configured")
	ErrSupabaseUserNotFound = errors.New("supabase user not found")
	ErrAdminRequestFailed   = errors.New("supabase admin request failed")
)
