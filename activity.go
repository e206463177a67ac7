package users

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLoginThrottled       ActivityEventType = "auth.login.throttled"
	ActivityEventSessionRefreshed     ActivityEventType = "session.refreshed"
	ActivityEventSessionReplay        ActivityEventType = "session.replay_detected"
	ActivityEventSessionRevoked       ActivityEventType = "session.revoked"
	ActivityEventAccountRegistered    ActivityEventType = "account.registered"
	ActivityEventAccountActivated     ActivityEventType = "account.activated"
	ActivityEventAccountUpdated       ActivityEventType = "account.updated"
	ActivityEventPasswordResetRequest ActivityEventType = "account.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "account.password.reset"
	ActivityEventPasswordChanged      ActivityEventType = "account.password.changed"
	ActivityEventRoleProvisioned      ActivityEventType = "authz.role.provisioned"
	ActivityEventRoleDeprovisioned    ActivityEventType = "authz.role.deprovisioned"
	ActivityEventGrantsChanged        ActivityEventType = "authz.grants.changed"
	ActivityEventPolicyChanged        ActivityEventType = "authz.policy.changed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      string
	Login      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
