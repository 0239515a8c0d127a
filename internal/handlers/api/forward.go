package api

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/khanghh/supagate/internal/middlewares"
	"github.com/khanghh/supagate/params"
)

// ForumProxy forwards requests that passed the two-factor gate to the forum
// backend, tagging them with the authenticated user.
type ForumProxy struct {
	upstream string
}

func (p *ForumProxy) Forward(ctx *fiber.Ctx) error {
	ctx.Request().Header.Del(params.ForumUserIDHeader)
	if actor := middlewares.GetActor(ctx); actor != nil {
		ctx.Request().Header.Set(params.ForumUserIDHeader, strconv.FormatUint(uint64(actor.ID), 10))
	}

	if err := proxy.Do(ctx, p.upstream+ctx.OriginalURL()); err != nil {
		slog.Error("Could not reach forum upstream", "path", ctx.Path(), "error", err)
		return ErrUpstreamUnavailable
	}
	ctx.Response().Header.Del(fiber.HeaderServer)
	return nil
}

func NewForumProxy(upstream string) *ForumProxy {
	return &ForumProxy{upstream: strings.TrimRight(upstream, "/")}
}
