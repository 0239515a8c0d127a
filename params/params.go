package params

import "time"

const (
	ServerBodyLimit            = 1048576 // 1 MiB
	ServerIdleTimeout          = 30 * time.Second
	ServerReadTimeout          = 10 * time.Second
	ServerWriteTimeout         = 10 * time.Second
	SessionKeyPrefix           = "s:"
	SettingsKeyPrefix          = "cfg:"
	AttemptKeyPrefix           = "a:"
	SettingsKey                = "settings"
	DefaultIssuer              = "Flarum"
	HealthCheckServerAddr      = ":3001"          // health check server address
	MemoryStorageGCInterval    = 10 * time.Second // sweep interval of the in-memory store
	TwoFactorSetupExpiration   = 15 * time.Minute // pending enrollment lifetime, checked lazily on confirm
	TwoFactorSecretSize        = 32               // bytes of entropy in a generated TOTP secret
	TwoFactorPeriod            = 30               // TOTP time step in seconds
	TwoFactorSkew              = 1                // accepted steps before and after the current one
	TwoFactorCodeLength        = 6                // digits in a TOTP code
	TwoFactorQRCodeSize        = 200              // QR image width and height in pixels
	TwoFactorAttemptWindow     = 15 * time.Minute // failed attempt counter lifetime when throttling is on
	TwoFactorVerifyPath        = "/2fa/verify"    // client route linked from 2fa_required challenges
	TwoFactorSetupPath         = "/2fa/setup"     // client route linked from 2fa_setup_required challenges
	PermissionRequire2FA       = "supabase.require2fa"
	SupabaseDefaultAudience    = "authenticated"
	SupabaseUsernameMaxLength  = 32
	SupabaseUsernameSuffixSize = 4
	SupabaseTokenLeeway        = 5 * time.Second
	ForumUserIDHeader          = "X-Forum-User-Id"
	SupabaseAdminTimeout       = 10 * time.Second
	SupabaseAdminPageSize      = 100
)
