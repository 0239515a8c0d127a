package users

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/supagate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeUserRepository struct {
	users   []*model.User
	updates []map[string]any
	nextID  uint
}

func (r *fakeUserRepository) FirstPreload(ctx context.Context, preload string, query any, args ...any) (*model.User, error) {
	for _, u := range r.users {
		var match bool
		switch query {
		case "id = ?":
			match = u.ID == args[0].(uint)
		case "username = ?":
			match = u.Username == args[0].(string)
		case "supabase_id = ?":
			match = u.SupabaseID == args[0].(string)
		}
		if match {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func duplicateEntry(index string) error {
	return &mysql.MySQLError{Number: 1062, Message: fmt.Sprintf("Duplicate entry for key 'users.%s'", index)}
}

func (r *fakeUserRepository) Create(ctx context.Context, user *model.User) error {
	for _, u := range r.users {
		if u.Username == user.Username {
			return duplicateEntry(IdxUserUsername)
		}
		if u.Email == user.Email {
			return duplicateEntry(IdxUserEmail)
		}
	}
	r.nextID++
	user.ID = r.nextID
	clone := *user
	r.users = append(r.users, &clone)
	return nil
}

func (r *fakeUserRepository) Updates(ctx context.Context, userID uint, columns map[string]any) (int64, error) {
	r.updates = append(r.updates, columns)
	for _, u := range r.users {
		if u.ID == userID {
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeUserRepository) AddPermission(ctx context.Context, perm *model.UserPermission) error {
	return nil
}

func (r *fakeUserRepository) RemovePermission(ctx context.Context, userID uint, name string) (int64, error) {
	return 0, nil
}

const testSupabaseID = "3f2b8c1e-9a4d-4e2b-8f1a-2c3d4e5f6a7b"

func TestGetOrCreateSupabaseUserCreates(t *testing.T) {
	repo := &fakeUserRepository{}
	svc := NewUserService(repo)

	user, created, err := svc.GetOrCreateSupabaseUser(context.Background(), SupabaseProfile{
		SupabaseID: testSupabaseID,
		Email:      "alice@example.com",
		Name:       "Alice Liddell",
		Provider:   "github",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice_liddell", user.Username)
	assert.Equal(t, "github", user.Provider)
	assert.NotZero(t, user.ID)
}

func TestGetOrCreateSupabaseUserExisting(t *testing.T) {
	repo := &fakeUserRepository{}
	svc := NewUserService(repo)
	ctx := context.Background()

	first, _, err := svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{SupabaseID: testSupabaseID, Email: "a@example.com"})
	require.NoError(t, err)

	again, created, err := svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{SupabaseID: testSupabaseID, Email: "new@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "new@example.com", again.Email)
	require.Len(t, repo.updates, 1)
	assert.Equal(t, "new@example.com", repo.updates[0][ColUserEmail])
}

func TestGetOrCreateSupabaseUserUsernameCollision(t *testing.T) {
	repo := &fakeUserRepository{users: []*model.User{{ID: 100, Username: "bob", Email: "other@example.com"}}}
	svc := NewUserService(repo)

	user, _, err := svc.GetOrCreateSupabaseUser(context.Background(), SupabaseProfile{
		SupabaseID: testSupabaseID,
		Email:      "bob@example.com",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.Username, "bob_"))
	assert.Len(t, user.Username, len("bob_")+8)
}

func TestGetOrCreateSupabaseUserErrors(t *testing.T) {
	repo := &fakeUserRepository{users: []*model.User{{ID: 100, Username: "carol", Email: "carol@example.com"}}}
	svc := NewUserService(repo)
	ctx := context.Background()

	_, _, err := svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{SupabaseID: "supabase_123"})
	assert.ErrorIs(t, err, ErrInvalidSupabaseID)

	_, _, err = svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{SupabaseID: testSupabaseID, Name: "Someone", Email: "carol@example.com"})
	assert.ErrorIs(t, err, ErrEmailRegistered)

	_, _, err = svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{SupabaseID: testSupabaseID, Name: "Phone Only"})
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		profile SupabaseProfile
		want    string
	}{
		{SupabaseProfile{Name: "  Jean-Luc Picard! "}, "jean_luc_picard"},
		{SupabaseProfile{Email: "dave.smith@example.com"}, "dave_smith"},
		{SupabaseProfile{Provider: "google"}, "google"},
		{SupabaseProfile{}, "user"},
		{SupabaseProfile{Name: strings.Repeat("x", 40)}, strings.Repeat("x", 23)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseUsername(tt.profile))
	}
}

func TestTwoFactorColumns(t *testing.T) {
	repo := &fakeUserRepository{users: []*model.User{{ID: 5, Username: "eve"}}}
	svc := NewUserService(repo)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	require.NoError(t, svc.EnableTwoFactor(ctx, 5, "SECRET", at))
	assert.Equal(t, true, repo.updates[0][ColUserHas2FAEnabled])
	assert.Equal(t, "SECRET", repo.updates[0][ColUserTwoFactorSecret])
	assert.Equal(t, at, repo.updates[0][ColUserTwoFactorEnabledAt])

	require.NoError(t, svc.DisableTwoFactor(ctx, 5))
	assert.Equal(t, false, repo.updates[1][ColUserHas2FAEnabled])
	assert.Equal(t, "", repo.updates[1][ColUserTwoFactorSecret])
	assert.Nil(t, repo.updates[1][ColUserTwoFactorEnabledAt])

	assert.ErrorIs(t, svc.TouchTwoFactorVerified(ctx, 99, at), ErrUserNotFound)
}

func TestConnectedProviders(t *testing.T) {
	repo := &fakeUserRepository{}
	svc := NewUserService(repo)
	ctx := context.Background()

	user, created, err := svc.GetOrCreateSupabaseUser(ctx, SupabaseProfile{
		SupabaseID: testSupabaseID,
		Email:      "dave@example.com",
		Provider:   "github",
		Providers:  []string{"github", "google", "github", ""},
	})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, []string{"github", "google"}, user.Providers())
	assert.True(t, user.HasProvider("google"))
	assert.False(t, user.HasProvider("discord"))

	repo.users[0].ConnectedProviders = "github,google"
	user, err = svc.SyncSupabaseUser(ctx, SupabaseProfile{SupabaseID: testSupabaseID, Providers: []string{"github"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, user.Providers())
	require.Len(t, repo.updates, 1)
	assert.Equal(t, "github", repo.updates[0][ColUserConnectedProviders])

	require.NoError(t, svc.SetProviders(ctx, user.ID, []string{}))
	assert.Equal(t, "", repo.updates[1][ColUserConnectedProviders])

	_, err = svc.SyncSupabaseUser(ctx, SupabaseProfile{SupabaseID: "5b6c7d8e-0000-4000-8000-000000000000"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProvidersOfEmptyUser(t *testing.T) {
	user := &model.User{}
	assert.Empty(t, user.Providers())
	assert.Equal(t, "", model.JoinProviders(nil))
	assert.Equal(t, "github,google", model.JoinProviders([]string{" github", "google ", "github"}))
}
