package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-usersys/activitymap"
	"github.com/rs/zerolog"
)

// zlogger adapts zerolog to usersys.Logger
type zlogger struct {
	zl zerolog.Logger
}

func newLogger(level, name string) zlogger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", name).
		Logger()

	return zlogger{zl: zl}
}

func (l zlogger) named(name string) zlogger {
	return zlogger{zl: l.zl.With().Str("component", name).Logger()}
}

func (l zlogger) Debug(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l zlogger) Info(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l zlogger) Warn(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l zlogger) Error(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// audit writes a normalized activity record as structured fields
func (l zlogger) audit(n activitymap.Normalized) error {
	l.zl.Info().
		Str("actor_id", n.ActorID).
		Str("verb", n.Verb).
		Str("object_type", n.ObjectType).
		Str("object_id", n.ObjectID).
		Str("channel", n.Channel).
		Fields(n.Metadata).
		Time("occurred_at", n.OccurredAt).
		Msg("activity")
	return nil
}
