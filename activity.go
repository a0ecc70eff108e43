package usersys

import (
	"context"
	"time"
)

// ActivityEventType names an account lifecycle event
type ActivityEventType string

const (
	ActivityEventLoginSuccess        ActivityEventType = "usersys.login.success"
	ActivityEventLoginFailure        ActivityEventType = "usersys.login.failure"
	ActivityEventLogout              ActivityEventType = "usersys.logout"
	ActivityEventAccountCreated      ActivityEventType = "usersys.account.created"
	ActivityEventAccountVerified     ActivityEventType = "usersys.account.verified"
	ActivityEventAccountDisabled     ActivityEventType = "usersys.account.disabled"
	ActivityEventVerificationRequest ActivityEventType = "usersys.verification.requested"
	ActivityEventRecoveryRequest     ActivityEventType = "usersys.recovery.requested"
	ActivityEventRecoveryPerformed   ActivityEventType = "usersys.recovery.performed"
)

// ActivityEvent is emitted after a flow changed account or session state.
// UserID is empty when no identity was resolved, e.g. a failed login.
type ActivityEvent struct {
	EventType  ActivityEventType
	Caller     string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. Delivery is best effort, a failing
// sink is logged and never fails the flow that emitted the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc lets a plain function act as a sink
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

var discardActivity ActivitySink = ActivitySinkFunc(func(context.Context, ActivityEvent) error {
	return nil
})

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return discardActivity
	}
	return s
}
