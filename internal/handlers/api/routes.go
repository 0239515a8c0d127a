package api

import "github.com/gofiber/fiber/v2"

// SetupRoutes registers the API endpoints. Session, settings, actor and
// two-factor gate middlewares must already be installed on router. When
// forumProxy is set, every other /api request is forwarded to the forum.
func SetupRoutes(
	router fiber.Router,
	authHandler *AuthHandler,
	twoFactorHandler *TwoFactorHandler,
	settingsHandler *SettingsHandler,
	supabaseHandler *SupabaseHandler,
	forumProxy *ForumProxy) {

	router.Get("/api/forum", settingsHandler.GetForum)
	router.Post("/api/settings", settingsHandler.PostSettings)
	router.Post("/api/logout", authHandler.PostLogout)

	supabase := router.Group("/api/supabase")
	supabase.Post("/auth", authHandler.PostSupabaseAuth)
	supabase.Get("/providers", supabaseHandler.GetProviders)
	supabase.Post("/disconnect-provider", supabaseHandler.PostDisconnectProvider)
	supabase.Post("/sync", supabaseHandler.PostSync)

	twoFA := supabase.Group("/2fa")
	twoFA.Post("/setup", twoFactorHandler.PostSetup)
	twoFA.Post("/verify", twoFactorHandler.PostVerify)
	twoFA.Post("/disable", twoFactorHandler.PostDisable)
	twoFA.Get("/status", twoFactorHandler.GetStatus)

	if forumProxy != nil {
		router.All("/api/*", forumProxy.Forward)
	}
}
