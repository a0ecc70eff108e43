package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-usersys"
	"github.com/goliatone/go-usersys/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := usersys.ActivityEvent{
		EventType:  usersys.ActivityEventAccountDisabled,
		Caller:     "members",
		UserID:     "user-100",
		Metadata:   map[string]any{"period_id": "p-1"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, "account.disabled", out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "usersys", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "p-1", out.Metadata["period_id"])
	assert.Equal(t, "members", out.Metadata[activitymap.MetadataKeyCaller])
	assert.Equal(t, string(usersys.ActivityEventAccountDisabled), out.Metadata[activitymap.MetadataKeyEventType])

	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := usersys.ActivityEvent{
		EventType: usersys.ActivityEventRecoveryPerformed,
		Caller:    "members",
		UserID:    "user-200",
		Metadata: map[string]any{
			"token_id":                    "tok-1",
			activitymap.MetadataKeyCaller: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e usersys.ActivityEvent) string {
			if v, ok := e.Metadata["token_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "tok-1", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyCaller])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  usersys.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  usersys.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback without user",
			event:  usersys.ActivityEvent{EventType: usersys.ActivityEventLoginFailure},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback without user",
			event:  usersys.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event, tc.opts...).ActorID)
		})
	}
}

func TestSink(t *testing.T) {
	var got []activitymap.Normalized
	sink := activitymap.Sink(func(n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	}, activitymap.WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), usersys.ActivityEvent{
		EventType: usersys.ActivityEventLoginSuccess,
		UserID:    "user-1",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "login.success", got[0].Verb)
	assert.Equal(t, "audit", got[0].Channel)
}
