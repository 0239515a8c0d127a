package api

import (
	"context"

	"github.com/khanghh/supagate/internal/auth"
	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/internal/twofactor"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/model"
)

type TwoFactorService interface {
	Initiate(ctx context.Context, sub twofactor.Subject) (*twofactor.Enrollment, error)
	Confirm(ctx context.Context, sub twofactor.Subject, factorID, code string) error
	VerifyLogin(ctx context.Context, sub twofactor.Subject, code string) error
	Disable(ctx context.Context, sub twofactor.Subject) error
	Status(sub twofactor.Subject) (*twofactor.Status, error)
}

type UserService interface {
	GetOrCreateSupabaseUser(ctx context.Context, profile users.SupabaseProfile) (*model.User, bool, error)
}

type ProviderStore interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	SetProviders(ctx context.Context, userID uint, providers []string) error
	SyncSupabaseUser(ctx context.Context, profile users.SupabaseProfile) (*model.User, error)
}

// SupabaseAdmin is the subset of the Supabase admin API used for provider
// management and user sync.
type SupabaseAdmin interface {
	GetUser(supabaseID string) (*auth.AdminUser, error)
	ListUsers() ([]auth.AdminUser, error)
	UpdateProviders(supabaseID string, providers []string) error
}

type TokenVerifier interface {
	Verify(token string) (*auth.SupabaseClaims, error)
}

type SettingsStore interface {
	Update(ctx context.Context, s settings.Settings) error
}

type supabaseAuthRequest struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

type supabaseAuthResponse struct {
	UserID            uint   `json:"userId,string"`
	Username          string `json:"username"`
	Has2FAEnabled     bool   `json:"has2FAEnabled"`
	TwoFactorRequired bool   `json:"twoFactorRequired"`
}

type setupResponse struct {
	Secret   string `json:"secret"`
	QRCode   string `json:"qrCode"`
	FactorID string `json:"factorId"`
}

type verifyRequest struct {
	Code     string `json:"code"`
	FactorID string `json:"factorId"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type updateSettingsRequest struct {
	Enable2FA  *bool   `json:"enable2FA"`
	Require2FA *bool   `json:"require2FA"`
	ForumTitle *string `json:"forumTitle"`
}

type providersResponse struct {
	Providers []string `json:"providers"`
	Connected []string `json:"connected"`
}

type disconnectProviderRequest struct {
	Provider string `json:"provider"`
}

type disconnectProviderResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Providers []string `json:"providers,omitempty"`
}

type syncRequest struct {
	Action string `json:"action"`
	UserID uint   `json:"userId,string"`
}

type syncResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SyncCount  int    `json:"syncCount"`
	ErrorCount int    `json:"errorCount"`
}
