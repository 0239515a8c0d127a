package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/jsonapi"
	"github.com/khanghh/supagate/internal/middlewares"
)

type SettingsHandler struct {
	settingsStore SettingsStore
}

// GetForum exposes the settings the client needs to render 2FA screens.
func (h *SettingsHandler) GetForum(ctx *fiber.Ctx) error {
	return ctx.JSON(middlewares.GetSettings(ctx))
}

func (h *SettingsHandler) PostSettings(ctx *fiber.Ctx) error {
	actor := middlewares.GetActor(ctx)
	if actor == nil {
		return jsonapi.ErrUnauthorized
	}
	if !actor.IsAdmin {
		return jsonapi.ErrForbidden
	}

	var req updateSettingsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return jsonapi.ErrBadRequest
	}

	s := middlewares.GetSettings(ctx)
	if req.Enable2FA != nil {
		s.Enable2FA = *req.Enable2FA
	}
	if req.Require2FA != nil {
		s.Require2FA = *req.Require2FA
	}
	if req.ForumTitle != nil {
		s.ForumTitle = *req.ForumTitle
	}
	if err := h.settingsStore.Update(ctx.Context(), s); err != nil {
		return err
	}

	reason := fmt.Sprintf("enable2FA=%t require2FA=%t", s.Enable2FA, s.Require2FA)
	if err := audit.RecordSettingsUpdated(ctx.Context(), auditActor(ctx, actor), reason); err != nil {
		slog.Error("Could not record audit event", "error", err)
	}
	return ctx.JSON(s)
}

func NewSettingsHandler(settingsStore SettingsStore) *SettingsHandler {
	return &SettingsHandler{
		settingsStore: settingsStore,
	}
}
