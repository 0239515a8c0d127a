package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/supagate/internal/audit"
	"github.com/khanghh/supagate/internal/mail"
	"github.com/khanghh/supagate/model"
)

const (
	msgSetupComplete = "Two-factor authentication has been set up successfully."
	msgVerified      = "Two-factor authentication verified successfully."
	msgDisabled      = "Two-factor authentication has been disabled."
)

type TwoFactorHandler struct {
	twoFactorService TwoFactorService
	mailSender       mail.MailSender
}

func (h *TwoFactorHandler) notify(kind string, user *model.User, send func(mail.MailSender, string, string, time.Time) error) {
	if h.mailSender == nil || user.Email == "" {
		return
	}
	email, username, at := user.Email, user.Username, time.Now()
	mail.SendAsync(kind, func() error {
		return send(h.mailSender, email, username, at)
	})
}

func (h *TwoFactorHandler) PostSetup(ctx *fiber.Ctx) error {
	sub := getSubject(ctx)
	enrollment, err := h.twoFactorService.Initiate(ctx.Context(), sub)
	if err != nil {
		return toAPIError(ctx, err)
	}
	recordTwoFA(ctx, sub.User, audit.EventTypeTwoFASetupInitiated, "")
	return ctx.JSON(setupResponse{
		Secret:   enrollment.Secret,
		QRCode:   enrollment.QRCode,
		FactorID: enrollment.FactorID,
	})
}

// PostVerify confirms a pending enrollment when a factorId is given, and
// otherwise verifies the second factor of an enrolled user.
func (h *TwoFactorHandler) PostVerify(ctx *fiber.Ctx) error {
	var req verifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		// an unreadable body carries no code; the service still reports
		// feature and login state before the code format
		req = verifyRequest{}
	}

	sub := getSubject(ctx)
	if req.FactorID != "" {
		if err := h.twoFactorService.Confirm(ctx.Context(), sub, req.FactorID, req.Code); err != nil {
			recordTwoFA(ctx, sub.User, audit.EventTypeTwoFAVerifyFailed, err.Error())
			return toAPIError(ctx, err)
		}
		recordTwoFA(ctx, sub.User, audit.EventTypeTwoFAEnabled, "")
		h.notify(audit.EventTypeTwoFAEnabled, sub.User, mail.SendTwoFactorEnabled)
		return ctx.JSON(successResponse{Success: true, Message: msgSetupComplete})
	}

	if err := h.twoFactorService.VerifyLogin(ctx.Context(), sub, req.Code); err != nil {
		recordTwoFA(ctx, sub.User, audit.EventTypeTwoFAVerifyFailed, err.Error())
		return toAPIError(ctx, err)
	}
	recordTwoFA(ctx, sub.User, audit.EventTypeTwoFAVerified, "")
	return ctx.JSON(successResponse{Success: true, Message: msgVerified})
}

func (h *TwoFactorHandler) PostDisable(ctx *fiber.Ctx) error {
	sub := getSubject(ctx)
	if err := h.twoFactorService.Disable(ctx.Context(), sub); err != nil {
		return toAPIError(ctx, err)
	}
	recordTwoFA(ctx, sub.User, audit.EventTypeTwoFADisabled, "")
	h.notify(audit.EventTypeTwoFADisabled, sub.User, mail.SendTwoFactorDisabled)
	return ctx.JSON(successResponse{Success: true, Message: msgDisabled})
}

func (h *TwoFactorHandler) GetStatus(ctx *fiber.Ctx) error {
	status, err := h.twoFactorService.Status(getSubject(ctx))
	if err != nil {
		return toAPIError(ctx, err)
	}
	return ctx.JSON(status)
}

func NewTwoFactorHandler(twoFactorService TwoFactorService, mailSender mail.MailSender) *TwoFactorHandler {
	return &TwoFactorHandler{
		twoFactorService: twoFactorService,
		mailSender:       mailSender,
	}
}
