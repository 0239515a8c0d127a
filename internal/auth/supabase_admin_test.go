package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServiceKey = "service-role-key"

// fakeGoTrue serves the admin user endpoints from memory.
type fakeGoTrue struct {
	mu    sync.Mutex
	users []AdminUser
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testServiceKey || r.Header.Get("Authorization") != "Bearer "+testServiceKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users")
	id = strings.TrimPrefix(id, "/")
	if id == "" && r.Method == http.MethodGet {
		var page, perPage int
		fmt.Sscan(r.URL.Query().Get("page"), &page)
		fmt.Sscan(r.URL.Query().Get("per_page"), &perPage)
		start := min((page-1)*perPage, len(f.users))
		end := min(start+perPage, len(f.users))
		_ = json.NewEncoder(w).Encode(listUsersResponse{Users: f.users[start:end]})
		return
	}

	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(f.users[i])
		case http.MethodPut:
			var req struct {
				AppMetadata AppMetadata `json:"app_metadata"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.users[i].AppMetadata.Providers = req.AppMetadata.Providers
			_ = json.NewEncoder(w).Encode(f.users[i])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func newTestAdmin(t *testing.T, users []AdminUser) (*SupabaseAdmin, *fakeGoTrue) {
	t.Helper()
	backend := &fakeGoTrue{users: users}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)
	admin := NewSupabaseAdmin(SupabaseAdminConfig{URL: server.URL + "/", ServiceRoleKey: testServiceKey})
	require.NotNil(t, admin)
	return admin, backend
}

func TestNewSupabaseAdminUnconfigured(t *testing.T) {
	assert.Nil(t, NewSupabaseAdmin(SupabaseAdminConfig{URL: "https://project.supabase.co"}))
	assert.Nil(t, NewSupabaseAdmin(SupabaseAdminConfig{ServiceRoleKey: testServiceKey}))
}

func TestAdminGetUser(t *testing.T) {
	alice := AdminUser{ID: testSubject, Email: "alice@example.com"}
	alice.AppMetadata = AppMetadata{Provider: "github", Providers: []string{"github", "google"}}
	alice.UserMetadata.FullName = "Alice Liddell"
	admin, _ := newTestAdmin(t, []AdminUser{alice})

	user, err := admin.GetUser(testSubject)
	require.NoError(t, err)
	profile := user.Profile()
	assert.Equal(t, testSubject, profile.SupabaseID)
	assert.Equal(t, "Alice Liddell", profile.Name)
	assert.Equal(t, []string{"github", "google"}, profile.Providers)

	_, err = admin.GetUser("0e9c1d2f-1111-4222-8333-444455556666")
	assert.ErrorIs(t, err, ErrSupabaseUserNotFound)
}

func TestAdminListUsersPaginates(t *testing.T) {
	var users []AdminUser
	for i := range 150 {
		users = append(users, AdminUser{ID: fmt.Sprintf("user-%03d", i)})
	}
	admin, _ := newTestAdmin(t, users)

	all, err := admin.ListUsers()
	require.NoError(t, err)
	require.Len(t, all, 150)
	assert.Equal(t, "user-000", all[0].ID)
	assert.Equal(t, "user-149", all[149].ID)
}

func TestAdminUpdateProviders(t *testing.T) {
	admin, backend := newTestAdmin(t, []AdminUser{{ID: testSubject, AppMetadata: AppMetadata{Providers: []string{"github", "google"}}}})

	require.NoError(t, admin.UpdateProviders(testSubject, []string{"github"}))
	assert.Equal(t, []string{"github"}, backend.users[0].AppMetadata.Providers)

	assert.ErrorIs(t, admin.UpdateProviders("missing", nil), ErrSupabaseUserNotFound)
}

func TestAdminRejectedKey(t *testing.T) {
	admin, _ := newTestAdmin(t, nil)
	admin.key = "wrong"

	_, err := admin.ListUsers()
	assert.ErrorIs(t, err, ErrAdminRequestFailed)
}
