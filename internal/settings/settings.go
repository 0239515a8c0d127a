package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/khanghh/supagate/internal/store"
	"github.com/khanghh/supagate/params"
	"github.com/spf13/cast"
)

// Settings is the forum settings snapshot observed by a single request.
type Settings struct {
	Enable2FA  bool   `json:"enable2FA"`
	Require2FA bool   `json:"require2FA"`
	ForumTitle string `json:"forumTitle"`
}

// Issuer is the label shown by authenticator apps.
func (s Settings) Issuer() string {
	if s.ForumTitle == "" {
		return params.DefaultIssuer
	}
	return s.ForumTitle
}

type Provider interface {
	Load(ctx context.Context) (Settings, error)
}

const (
	fieldEnable2FA  = "enable2FA"
	fieldRequire2FA = "require2FA"
	fieldForumTitle = "forumTitle"
)

// StoreProvider persists settings as a single hash with '1'/'0' flag values.
type StoreProvider struct {
	storage  store.Storage
	defaults Settings
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (p *StoreProvider) Load(ctx context.Context) (Settings, error) {
	var raw map[string]string
	err := p.storage.Get(ctx, params.SettingsKey, &raw)
	if errors.Is(err, store.ErrNotFound) {
		return p.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s := p.defaults
	if v, ok := raw[fieldEnable2FA]; ok {
		s.Enable2FA = cast.ToBool(v)
	}
	if v, ok := raw[fieldRequire2FA]; ok {
		s.Require2FA = cast.ToBool(v)
	}
	if v, ok := raw[fieldForumTitle]; ok {
		s.ForumTitle = v
	}
	return s, nil
}

// Update writes every field of s.
func (p *StoreProvider) Update(ctx context.Context, s Settings) error {
	return p.storage.Save(ctx, params.SettingsKey, map[string]any{
		fieldEnable2FA:  boolString(s.Enable2FA),
		fieldRequire2FA: boolString(s.Require2FA),
		fieldForumTitle: s.ForumTitle,
	})
}

func NewStoreProvider(storage store.Storage, defaults Settings) *StoreProvider {
	return &StoreProvider{
		storage:  store.StorageWithPrefix(storage, params.SettingsKeyPrefix),
		defaults: defaults,
	}
}

// Static always returns the same settings.
type Static Settings

func (s Static) Load(ctx context.Context) (Settings, error) {
	return Settings(s), nil
}
