package model

import (
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a forum account mirrored from the identity provider, together with
// its two-factor record. TwoFactorSecret is set if and only if Has2FAEnabled.
type User struct {
	ID                      uint             `gorm:"primarykey"`
	SupabaseID              string           `gorm:"uniqueIndex:idx_users_supabase_id;size:36;not null"`
	Username                string           `gorm:"uniqueIndex:idx_users_username;size:32;not null"`
	Email                   string           `gorm:"uniqueIndex:idx_users_email;size:256;not null"`
	AvatarURL               string           `gorm:"size:512;not null"`
	Provider                string           `gorm:"size:32;not null"`
	ConnectedProviders      string           `gorm:"size:255;not null"` // comma separated identity providers
	IsAdmin                 bool             `gorm:"default:false;not null"`
	Has2FAEnabled           bool             `gorm:"column:has_2fa_enabled;default:false;not null"`
	TwoFactorSecret         string           `gorm:"size:128;not null" json:"-"`
	TwoFactorEnabledAt      *time.Time       `gorm:"column:two_factor_enabled_at"`
	TwoFactorLastVerifiedAt *time.Time       `gorm:"column:two_factor_last_verified_at"`
	Permissions             []UserPermission `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
	DeletedAt               gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// HasPermission reports whether the user holds the named permission. Admins hold every permission.
func (u *User) HasPermission(name string) bool {
	if u.IsAdmin {
		return true
	}
	for _, perm := range u.Permissions {
		if perm.Name == name {
			return true
		}
	}
	return false
}

// Providers lists the identity providers linked to the account.
func (u *User) Providers() []string {
	if u.ConnectedProviders == "" {
		return []string{}
	}
	return strings.Split(u.ConnectedProviders, ",")
}

func (u *User) HasProvider(name string) bool {
	return slices.Contains(u.Providers(), name)
}

// JoinProviders encodes a provider list for the ConnectedProviders column,
// dropping blanks and duplicates.
func JoinProviders(providers []string) string {
	var out []string
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// UserPermission grants a named permission to a user.
type UserPermission struct {
	ID        uint   `gorm:"primarykey,autoIncrement"`
	UserID    uint   `gorm:"not null;index:idx_user_permission,unique"`
	Name      string `gorm:"size:64;not null;index:idx_user_permission,unique"`
	CreatedAt time.Time
}
