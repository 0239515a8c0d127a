package middlewares

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/middlewares/sessions"
	"github.com/khanghh/supagate/internal/settings"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/model"
)

const (
	actorContextKey    = "actor"
	settingsContextKey = "settings"
)

type UserLoader interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
}

// LoadSettings reads the forum settings once per request.
func LoadSettings(provider settings.Provider) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		s, err := provider.Load(ctx.Context())
		if err != nil {
			return err
		}
		ctx.Locals(settingsContextKey, s)
		return ctx.Next()
	}
}

func GetSettings(ctx *fiber.Ctx) settings.Settings {
	s, _ := ctx.Locals(settingsContextKey).(settings.Settings)
	return s
}

// LoadActor resolves the user bound to the session. Requests without a
// logged in session, or whose user no longer exists, continue as guests.
func LoadActor(loader UserLoader) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sess := sessions.Get(ctx)
		if sess == nil || !sess.IsLoggedIn() {
			return ctx.Next()
		}
		user, err := loader.GetUserByID(ctx.Context(), sess.UserID)
		if errors.Is(err, users.ErrUserNotFound) {
			slog.Warn("Session user no longer exists", "userID", sess.UserID)
			if err := sess.Destroy(); err != nil {
				return err
			}
			return ctx.Next()
		}
		if err != nil {
			return err
		}
		ctx.Locals(actorContextKey, user)
		return ctx.Next()
	}
}

// GetActor returns the current user, or nil for guests.
func GetActor(ctx *fiber.Ctx) *model.User {
	user, _ := ctx.Locals(actorContextKey).(*model.User)
	return user
}

func SetActor(ctx *fiber.Ctx, user *model.User) {
	ctx.Locals(actorContextKey, user)
}
