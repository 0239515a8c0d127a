package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/khanghh/supagate/model"
	"github.com/khanghh/supagate/params"
	"gorm.io/gorm"
)

const (
	ColUserEmail                   = "email"
	ColUserAvatarURL               = "avatar_url"
	ColUserProvider                = "provider"
	ColUserConnectedProviders      = "connected_providers"
	ColUserIsAdmin                 = "is_admin"
	ColUserHas2FAEnabled           = "has_2fa_enabled"
	ColUserTwoFactorSecret         = "two_factor_secret"
	ColUserTwoFactorEnabledAt      = "two_factor_enabled_at"
	ColUserTwoFactorLastVerifiedAt = "two_factor_last_verified_at"

	maxUsernameAttempts = 5
)

// SupabaseProfile is the identity asserted by a verified Supabase access token.
type SupabaseProfile struct {
	SupabaseID string
	Email      string
	Name       string // display or preferred name, used to derive a username
	AvatarURL  string
	Provider   string
	Providers  []string // every identity provider linked to the account
}

type UserService struct {
	userRepo UserRepository
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FirstPreload(ctx, "Permissions", "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FirstPreload(ctx, "Permissions", "username = ?", username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserBySupabaseID(ctx context.Context, supabaseID string) (*model.User, error) {
	user, err := s.userRepo.FirstPreload(ctx, "Permissions", "supabase_id = ?", supabaseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// baseUsername derives a username from the display name, falling back to the
// local part of the email and then to the provider name.
func baseUsername(profile SupabaseProfile) string {
	username := slugify(profile.Name)
	if username == "" {
		local, _, _ := strings.Cut(profile.Email, "@")
		username = slugify(local)
	}
	if username == "" {
		username = slugify(profile.Provider)
	}
	if username == "" {
		username = "user"
	}
	maxLen := params.SupabaseUsernameMaxLength - params.SupabaseUsernameSuffixSize*2 - 1
	if len(username) > maxLen {
		username = strings.TrimRight(username[:maxLen], "_")
	}
	return username
}

func randomSuffix() string {
	b := make([]byte, params.SupabaseUsernameSuffixSize)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to generate random bytes: %w", err))
	}
	return hex.EncodeToString(b)
}

func (s *UserService) createSupabaseUser(ctx context.Context, profile SupabaseProfile) (*model.User, error) {
	base := baseUsername(profile)
	username := base
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		user := model.User{
			SupabaseID: profile.SupabaseID,
			Username:   username,
			Email:      profile.Email,
			AvatarURL:  profile.AvatarURL,
			Provider:   profile.Provider,

			ConnectedProviders: model.JoinProviders(profile.Providers),
		}
		err := s.userRepo.Create(ctx, &user)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			switch {
			case strings.Contains(mysqlErr.Message, IdxUserUsername):
				username = base + "_" + randomSuffix()
				continue
			case strings.Contains(mysqlErr.Message, IdxUserEmail):
				return nil, ErrEmailRegistered
			}
		}
		if err != nil {
			return nil, err
		}
		return &user, nil
	}
	return nil, ErrUsernameTaken
}

// GetOrCreateSupabaseUser returns the user linked to the Supabase identity,
// creating it on first sign in. Email and avatar of an existing user follow
// the identity provider.
func (s *UserService) GetOrCreateSupabaseUser(ctx context.Context, profile SupabaseProfile) (*model.User, bool, error) {
	if err := uuid.Validate(profile.SupabaseID); err != nil {
		return nil, false, ErrInvalidSupabaseID
	}

	user, err := s.GetUserBySupabaseID(ctx, profile.SupabaseID)
	if errors.Is(err, ErrUserNotFound) {
		if profile.Email == "" {
			return nil, false, ErrMissingEmail
		}
		user, err = s.createSupabaseUser(ctx, profile)
		return user, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	if err := s.syncProfile(ctx, user, profile); err != nil {
		return nil, false, err
	}
	return user, false, nil
}

// syncProfile copies email, avatar and linked providers from the identity
// provider onto an existing user.
func (s *UserService) syncProfile(ctx context.Context, user *model.User, profile SupabaseProfile) error {
	updates := map[string]any{}
	if profile.Email != "" && profile.Email != user.Email {
		updates[ColUserEmail] = profile.Email
	}
	if profile.AvatarURL != "" && profile.AvatarURL != user.AvatarURL {
		updates[ColUserAvatarURL] = profile.AvatarURL
	}
	if providers := model.JoinProviders(profile.Providers); providers != "" && providers != user.ConnectedProviders {
		updates[ColUserConnectedProviders] = providers
	}
	if len(updates) == 0 {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	_, err := s.userRepo.Updates(ctx, user.ID, updates)
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrEmailRegistered
	}
	if err != nil {
		return err
	}
	if email, ok := updates[ColUserEmail].(string); ok {
		user.Email = email
	}
	if avatar, ok := updates[ColUserAvatarURL].(string); ok {
		user.AvatarURL = avatar
	}
	if providers, ok := updates[ColUserConnectedProviders].(string); ok {
		user.ConnectedProviders = providers
	}
	return nil
}

// SyncSupabaseUser refreshes the local user linked to profile. It never
// creates users.
func (s *UserService) SyncSupabaseUser(ctx context.Context, profile SupabaseProfile) (*model.User, error) {
	user, err := s.GetUserBySupabaseID(ctx, profile.SupabaseID)
	if err != nil {
		return nil, err
	}
	if err := s.syncProfile(ctx, user, profile); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) updateUser(ctx context.Context, userID uint, columns map[string]any) error {
	affected, err := s.userRepo.Updates(ctx, userID, columns)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) EnableTwoFactor(ctx context.Context, userID uint, secret string, at time.Time) error {
	return s.updateUser(ctx, userID, map[string]any{
		ColUserHas2FAEnabled:           true,
		ColUserTwoFactorSecret:         secret,
		ColUserTwoFactorEnabledAt:      at,
		ColUserTwoFactorLastVerifiedAt: at,
	})
}

func (s *UserService) DisableTwoFactor(ctx context.Context, userID uint) error {
	return s.updateUser(ctx, userID, map[string]any{
		ColUserHas2FAEnabled:           false,
		ColUserTwoFactorSecret:         "",
		ColUserTwoFactorEnabledAt:      nil,
		ColUserTwoFactorLastVerifiedAt: nil,
	})
}

func (s *UserService) TouchTwoFactorVerified(ctx context.Context, userID uint, at time.Time) error {
	return s.updateUser(ctx, userID, map[string]any{
		ColUserTwoFactorLastVerifiedAt: at,
	})
}

func (s *UserService) SetProviders(ctx context.Context, userID uint, providers []string) error {
	return s.updateUser(ctx, userID, map[string]any{
		ColUserConnectedProviders: model.JoinProviders(providers),
	})
}

func (s *UserService) SetAdmin(ctx context.Context, userID uint, admin bool) error {
	return s.updateUser(ctx, userID, map[string]any{
		ColUserIsAdmin: admin,
	})
}

func (s *UserService) GrantPermission(ctx context.Context, userID uint, name string) error {
	return s.userRepo.AddPermission(ctx, &model.UserPermission{UserID: userID, Name: name})
}

func (s *UserService) RevokePermission(ctx context.Context, userID uint, name string) error {
	_, err := s.userRepo.RemovePermission(ctx, userID, name)
	return err
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}
