package users

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrInvalidSupabaseID = errors.New("invalid supabase user id")
	ErrMissingEmail      = errors.New("identity has no email address")
)
