package twofa

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/jsonapi"
	"github.com/khanghh/supagate/internal/middlewares"
	"github.com/khanghh/supagate/internal/middlewares/sessions"
	"github.com/khanghh/supagate/internal/twofactor"
	"github.com/khanghh/supagate/params"
)

var (
	ErrVerificationRequired = jsonapi.NewError(fiber.StatusForbidden,
		"2fa_required",
		"Two-Factor Authentication Required",
		"For security reasons, this action requires 2FA verification.",
	)
	ErrSetupRequired = jsonapi.NewError(fiber.StatusForbidden,
		"2fa_setup_required",
		"Two-Factor Authentication Setup Required",
		"For security reasons, you must set up two-factor authentication before performing this action.",
	)
)

type Config struct {
	// Rules overrides DefaultRules.
	Rules      []Rule
	VerifyPath string
	SetupPath  string
}

func (c *Config) sanitize() {
	if c.Rules == nil {
		c.Rules = DefaultRules
	}
	if c.VerifyPath == "" {
		c.VerifyPath = params.TwoFactorVerifyPath
	}
	if c.SetupPath == "" {
		c.SetupPath = params.TwoFactorSetupPath
	}
}

// New returns a middleware that rejects sensitive requests until the
// session holds a second factor. It never modifies the session.
func New(config Config) fiber.Handler {
	config.sanitize()
	return func(ctx *fiber.Ctx) error {
		s := middlewares.GetSettings(ctx)
		if !s.Enable2FA {
			return ctx.Next()
		}
		actor := middlewares.GetActor(ctx)
		if actor == nil {
			return ctx.Next()
		}

		path := ctx.Path()
		if _, sensitive := ClassifyWith(config.Rules, path, ctx.Method(), actor); !sensitive {
			return ctx.Next()
		}

		if actor.Has2FAEnabled {
			sess := sessions.Get(ctx)
			if sess == nil || !twofactor.IsSessionVerified(sess) {
				return jsonapi.Send(ctx, ErrVerificationRequired.WithPointer(path).WithLink("verify", config.VerifyPath))
			}
			return ctx.Next()
		}
		if twofactor.IsRequired(actor, s) {
			return jsonapi.Send(ctx, ErrSetupRequired.WithPointer(path).WithLink("setup", config.SetupPath))
		}
		return ctx.Next()
	}
}
