package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/middlewares"
	"github.com/khanghh/supagate/internal/middlewares/sessions"
	"github.com/khanghh/supagate/internal/twofactor"
	"github.com/khanghh/supagate/model"
)

func getSubject(ctx *fiber.Ctx) twofactor.Subject {
	return twofactor.Subject{
		User:     middlewares.GetActor(ctx),
		Session:  sessions.Get(ctx),
		Settings: middlewares.GetSettings(ctx),
	}
}

func auditActor(ctx *fiber.Ctx, user *model.User) audit.Actor {
	actor := audit.Actor{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
	if user != nil {
		actor.UserID = user.ID
		actor.Username = user.Username
	}
	return actor
}

func recordTwoFA(ctx *fiber.Ctx, user *model.User, eventType string, reason string) {
	err := audit.RecordTwoFA(ctx.Context(), audit.TwoFARecord{
		Actor:     auditActor(ctx, user),
		EventType: eventType,
		Reason:    reason,
	})
	if err != nil {
		slog.Error("Could not record audit event", "event", eventType, "error", err)
	}
}
