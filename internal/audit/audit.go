package audit

import (
	"context"
	"sync"

	"github.com/khanghh/supagate/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeLoginSuccess        = "login_success"
	EventTypeLoginFailure        = "login_failure"
	EventTypeTwoFASetupInitiated = "2fa_setup_initiated"
	EventTypeTwoFAEnabled        = "2fa_enabled"
	EventTypeTwoFAVerified       = "2fa_verified"
	EventTypeTwoFAVerifyFailed   = "2fa_verify_failed"
	EventTypeTwoFADisabled       = "2fa_disabled"
	EventTypeSettingsUpdated     = "settings_updated"
	EventTypeProviderRemoved     = "provider_disconnected"
)

// Actor identifies who triggered an event and from where.
type Actor struct {
	UserID    uint
	Username  string
	IP        string
	UserAgent string
}

type LoginRecord struct {
	Actor
	Success bool
	Reason  string
}

type TwoFARecord struct {
	Actor
	EventType string
	Reason    string
}

func record(ctx context.Context, actor Actor, eventType, reason string) error {
	if auditRepo == nil {
		return nil
	}
	return auditRepo.RecordEvent(ctx, &model.AuditEvent{
		UserID:    actor.UserID,
		Username:  actor.Username,
		EventType: eventType,
		Reason:    reason,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
}

func RecordLogin(ctx context.Context, r LoginRecord) error {
	eventType := EventTypeLoginFailure
	if r.Success {
		eventType = EventTypeLoginSuccess
	}
	return record(ctx, r.Actor, eventType, r.Reason)
}

func RecordTwoFA(ctx context.Context, r TwoFARecord) error {
	return record(ctx, r.Actor, r.EventType, r.Reason)
}

func RecordSettingsUpdated(ctx context.Context, actor Actor, reason string) error {
	return record(ctx, actor, EventTypeSettingsUpdated, reason)
}

func RecordProviderRemoved(ctx context.Context, actor Actor, provider string) error {
	return record(ctx, actor, EventTypeProviderRemoved, provider)
}
