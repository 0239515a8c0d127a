package api

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/jsonapi"
	"github.com/khanghh/supagate/internal/middlewares"
)

const (
	syncActionAll  = "sync-all"
	syncActionUser = "sync-user"

	msgProviderNotConnected = "This provider is not connected to your account."
	msgProviderDisconnected = "Successfully disconnected %s from your account."
)

// SupabaseHandler serves the connected-provider and user sync endpoints.
// admin is nil when no service role key is configured.
type SupabaseHandler struct {
	userStore       ProviderStore
	admin           SupabaseAdmin
	socialProviders []string
}

// GetProviders lists the social providers offered for login and the ones
// linked to the current account.
func (h *SupabaseHandler) GetProviders(ctx *fiber.Ctx) error {
	resp := providersResponse{Providers: h.socialProviders, Connected: []string{}}
	if actor := middlewares.GetActor(ctx); actor != nil {
		resp.Connected = actor.Providers()
	}
	return ctx.JSON(resp)
}

func (h *SupabaseHandler) PostDisconnectProvider(ctx *fiber.Ctx) error {
	actor := middlewares.GetActor(ctx)
	if actor == nil {
		return jsonapi.ErrUnauthorized
	}
	var req disconnectProviderRequest
	if err := ctx.BodyParser(&req); err != nil || req.Provider == "" {
		return ErrMissingProvider
	}
	if !actor.HasProvider(req.Provider) {
		return ctx.JSON(disconnectProviderResponse{Message: msgProviderNotConnected})
	}

	remaining := slices.DeleteFunc(actor.Providers(), func(p string) bool { return p == req.Provider })
	if h.admin != nil {
		if err := h.admin.UpdateProviders(actor.SupabaseID, remaining); err != nil {
			return toAPIError(ctx, err)
		}
	}
	if err := h.userStore.SetProviders(ctx.Context(), actor.ID, remaining); err != nil {
		return toAPIError(ctx, err)
	}
	if err := audit.RecordProviderRemoved(ctx.Context(), auditActor(ctx, actor), req.Provider); err != nil {
		slog.Error("Could not record audit event", "error", err)
	}
	return ctx.JSON(disconnectProviderResponse{
		Success:   true,
		Message:   fmt.Sprintf(msgProviderDisconnected, req.Provider),
		Providers: remaining,
	})
}

// PostSync refreshes local profiles from the Supabase admin API.
func (h *SupabaseHandler) PostSync(ctx *fiber.Ctx) error {
	actor := middlewares.GetActor(ctx)
	if actor == nil {
		return jsonapi.ErrUnauthorized
	}
	if !actor.IsAdmin {
		return jsonapi.ErrForbidden
	}
	if h.admin == nil {
		return ErrSupabaseUnavailable
	}

	var req syncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return jsonapi.ErrBadRequest
	}
	switch req.Action {
	case syncActionAll:
		return h.syncAll(ctx)
	case syncActionUser:
		return h.syncUser(ctx, req.UserID)
	}
	return ErrUnknownSyncAction
}

func (h *SupabaseHandler) syncAll(ctx *fiber.Ctx) error {
	remoteUsers, err := h.admin.ListUsers()
	if err != nil {
		return toAPIError(ctx, err)
	}
	var resp syncResponse
	for _, remote := range remoteUsers {
		if _, err := h.userStore.SyncSupabaseUser(ctx.Context(), remote.Profile()); err != nil {
			slog.Warn("Could not sync Supabase user", "supabaseID", remote.ID, "error", err)
			resp.ErrorCount++
			continue
		}
		resp.SyncCount++
	}
	resp.Success = true
	resp.Message = fmt.Sprintf("Sync completed. Synced %d users. Failed: %d.", resp.SyncCount, resp.ErrorCount)
	return ctx.JSON(resp)
}

func (h *SupabaseHandler) syncUser(ctx *fiber.Ctx, userID uint) error {
	if userID == 0 {
		return jsonapi.ErrBadRequest.WithDetail("No user ID provided.").WithPointer("/userId")
	}
	user, err := h.userStore.GetUserByID(ctx.Context(), userID)
	if err != nil {
		return toAPIError(ctx, err)
	}
	if user.SupabaseID == "" {
		return ctx.JSON(syncResponse{Message: "User is not a Supabase user.", ErrorCount: 1})
	}
	remote, err := h.admin.GetUser(user.SupabaseID)
	if err != nil {
		return toAPIError(ctx, err)
	}
	if _, err := h.userStore.SyncSupabaseUser(ctx.Context(), remote.Profile()); err != nil {
		return toAPIError(ctx, err)
	}
	return ctx.JSON(syncResponse{Success: true, Message: "User synced successfully.", SyncCount: 1})
}

func NewSupabaseHandler(userStore ProviderStore, admin SupabaseAdmin, socialProviders []string) *SupabaseHandler {
	return &SupabaseHandler{
		userStore:       userStore,
		admin:           admin,
		socialProviders: socialProviders,
	}
}
