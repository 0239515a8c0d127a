package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/jsonapi"
)

// ErrorHandler renders every error escaping a handler as a JSON:API error document.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var apiErr *jsonapi.Error
	if errors.As(err, &apiErr) {
		return jsonapi.Send(ctx, apiErr)
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	switch code {
	case fiber.StatusBadRequest:
		return jsonapi.Send(ctx, jsonapi.ErrBadRequest)
	case fiber.StatusUnauthorized:
		return jsonapi.Send(ctx, jsonapi.ErrUnauthorized)
	case fiber.StatusForbidden:
		return jsonapi.Send(ctx, jsonapi.ErrForbidden)
	case fiber.StatusNotFound:
		return jsonapi.Send(ctx, jsonapi.ErrNotFound)
	case fiber.StatusMethodNotAllowed:
		return jsonapi.Send(ctx, jsonapi.ErrMethodNotAllow)
	case fiber.StatusRequestEntityTooLarge:
		return jsonapi.Send(ctx, jsonapi.NewError(code, "payload_too_large", "Payload Too Large", fiberErr.Message))
	default:
		slog.Error("unhandled error", "path", ctx.Path(), "code", code, "error", err)
		return jsonapi.Send(ctx, jsonapi.ErrInternal)
	}
}
