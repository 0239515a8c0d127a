package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/middlewares"
	"github.com/khanghh/supagate/internal/middlewares/sessions"
)

type AuthHandler struct {
	verifier    TokenVerifier
	userService UserService
}

func (h *AuthHandler) recordLogin(ctx *fiber.Ctx, r audit.LoginRecord) {
	if err := audit.RecordLogin(ctx.Context(), r); err != nil {
		slog.Error("Could not record login", "error", err)
	}
}

// PostSupabaseAuth exchanges a Supabase access token for a forum session.
func (h *AuthHandler) PostSupabaseAuth(ctx *fiber.Ctx) error {
	var req supabaseAuthRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ErrMissingToken
	}
	token := req.AccessToken
	if token == "" {
		token = req.Token
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.recordLogin(ctx, audit.LoginRecord{Actor: auditActor(ctx, nil), Reason: err.Error()})
		return toAPIError(ctx, err)
	}

	user, created, err := h.userService.GetOrCreateSupabaseUser(ctx.Context(), claims.Profile())
	if err != nil {
		h.recordLogin(ctx, audit.LoginRecord{Actor: auditActor(ctx, nil), Reason: err.Error()})
		return toAPIError(ctx, err)
	}
	if created {
		slog.Info("Created user from Supabase identity", "userID", user.ID, "username", user.Username)
	}

	err = sessions.Reset(ctx, sessions.SessionData{
		UserID:    user.ID,
		IP:        ctx.IP(),
		LoginTime: time.Now(),
	})
	if err != nil {
		return err
	}
	middlewares.SetActor(ctx, user)
	h.recordLogin(ctx, audit.LoginRecord{Actor: auditActor(ctx, user), Success: true})

	s := middlewares.GetSettings(ctx)
	return ctx.JSON(supabaseAuthResponse{
		UserID:            user.ID,
		Username:          user.Username,
		Has2FAEnabled:     user.Has2FAEnabled,
		TwoFactorRequired: s.Enable2FA && user.Has2FAEnabled,
	})
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewAuthHandler(verifier TokenVerifier, userService UserService) *AuthHandler {
	return &AuthHandler{
		verifier:    verifier,
		userService: userService,
	}
}
