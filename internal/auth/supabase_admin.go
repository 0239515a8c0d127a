package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/params"
)

// AdminUser is a user record returned by the Supabase admin API.
type AdminUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

func (u *AdminUser) Profile() users.SupabaseProfile {
	return buildProfile(u.ID, u.Email, u.AppMetadata, u.UserMetadata)
}

type listUsersResponse struct {
	Users []AdminUser `json:"users"`
}

type SupabaseAdminConfig struct {
	URL            string
	ServiceRoleKey string
}

// SupabaseAdmin calls the GoTrue admin endpoints with the service role key.
type SupabaseAdmin struct {
	baseURL string
	key     string
}

func (c *SupabaseAdmin) endpoint(elem ...string) string {
	path := "/auth/v1/admin/users"
	for _, e := range elem {
		path += "/" + url.PathEscape(e)
	}
	return c.baseURL + path
}

func (c *SupabaseAdmin) do(agent *fiber.Agent, out any) error {
	agent.Set("apikey", c.key).
		Set(fiber.HeaderAuthorization, "Bearer "+c.key).
		Timeout(params.SupabaseAdminTimeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrAdminRequestFailed, errors.Join(errs...))
	}
	if code == fiber.StatusNotFound {
		return ErrSupabaseUserNotFound
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: status %d", ErrAdminRequestFailed, code)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrAdminRequestFailed, err)
	}
	return nil
}

func (c *SupabaseAdmin) GetUser(supabaseID string) (*AdminUser, error) {
	var user AdminUser
	if err := c.do(fiber.Get(c.endpoint(supabaseID)), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every user, following pagination.
func (c *SupabaseAdmin) ListUsers() ([]AdminUser, error) {
	var all []AdminUser
	for page := 1; ; page++ {
		var resp listUsersResponse
		agent := fiber.Get(c.endpoint()).
			QueryString(fmt.Sprintf("page=%d&per_page=%d", page, params.SupabaseAdminPageSize))
		if err := c.do(agent, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Users...)
		if len(resp.Users) < params.SupabaseAdminPageSize {
			return all, nil
		}
	}
}

// UpdateProviders replaces the provider list stored in the user's app metadata.
func (c *SupabaseAdmin) UpdateProviders(supabaseID string, providers []string) error {
	agent := fiber.Put(c.endpoint(supabaseID)).JSON(fiber.Map{
		"app_metadata": fiber.Map{"providers": providers},
	})
	return c.do(agent, nil)
}

// NewSupabaseAdmin returns nil when the project URL or service role key is missing.
func NewSupabaseAdmin(config SupabaseAdminConfig) *SupabaseAdmin {
	if config.URL == "" || config.ServiceRoleKey == "" {
		return nil
	}
	return &SupabaseAdmin{
		baseURL: strings.TrimRight(config.URL, "/"),
		key:     config.ServiceRoleKey,
	}
}
