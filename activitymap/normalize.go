// Package activitymap flattens usersys activity events into a generic
// actor/verb/object record for feeds and audit stores.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-usersys"
)

const (
	// MetadataKeyCaller stores the caller the event was raised for
	MetadataKeyCaller = "caller"
	// MetadataKeyEventType stores the original event type
	MetadataKeyEventType = "event_type"
)

const eventTypePrefix = "usersys."

// Normalized is the flattened record handed to downstream systems
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option configures a mapper
type Option func(*mapper)

type mapper struct {
	channel    string
	objectType string
	anonymous  string
	objectID   func(usersys.ActivityEvent) string
}

func newMapper(opts []Option) *mapper {
	m := &mapper{
		channel:    "usersys",
		objectType: "user",
		anonymous:  "anonymous",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Normalize maps event to a Normalized record. The verb is the event type
// without its "usersys." prefix.
func Normalize(event usersys.ActivityEvent, opts ...Option) Normalized {
	return newMapper(opts).apply(event)
}

// Sink returns an activity sink that normalizes each event before passing
// it to fn
func Sink(fn func(Normalized) error, opts ...Option) usersys.ActivitySink {
	m := newMapper(opts)
	return usersys.ActivitySinkFunc(func(_ context.Context, event usersys.ActivityEvent) error {
		return fn(m.apply(event))
	})
}

// WithDefaultChannel sets the channel, "usersys" by default
func WithDefaultChannel(channel string) Option {
	return func(m *mapper) {
		m.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type, "user" by default
func WithDefaultObjectType(objectType string) Option {
	return func(m *mapper) {
		m.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver picks the object id out of the event, the user id
// is used otherwise
func WithObjectIDResolver(resolver func(usersys.ActivityEvent) string) Option {
	return func(m *mapper) {
		m.objectID = resolver
	}
}

// WithActorFallback sets the actor recorded for events without a user
func WithActorFallback(actorID string) Option {
	return func(m *mapper) {
		m.anonymous = strings.TrimSpace(actorID)
	}
}

func (m *mapper) apply(event usersys.ActivityEvent) Normalized {
	userID := strings.TrimSpace(event.UserID)

	out := Normalized{
		ActorID:    userID,
		Verb:       strings.TrimPrefix(string(event.EventType), eventTypePrefix),
		ObjectType: m.objectType,
		ObjectID:   userID,
		Channel:    m.channel,
		Metadata:   m.metadata(event),
		OccurredAt: event.OccurredAt,
	}

	if out.ActorID == "" {
		out.ActorID = m.anonymous
	}
	if m.objectID != nil {
		out.ObjectID = strings.TrimSpace(m.objectID(event))
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out
}

// metadata copies the event metadata, the source map is never modified
func (m *mapper) metadata(event usersys.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		out[k] = v
	}

	caller := strings.TrimSpace(event.Caller)
	if _, set := out[MetadataKeyCaller]; !set && caller != "" {
		out[MetadataKeyCaller] = caller
	}
	out[MetadataKeyEventType] = string(event.EventType)
	return out
}
