package usersys

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Disableable is anything that can be disabled for a period of time
type Disableable interface {
	DisabledItemType() string
	DisabledItemID() uuid.UUID
}

// DisablementStore persists disabled periods
type DisablementStore interface {
	RecordDisabledPeriod(ctx context.Context, period *DisabledPeriod) (*DisabledPeriod, error)
	DisabledPeriodsFor(ctx context.Context, itemType string, itemID uuid.UUID) ([]*DisabledPeriod, error)
}

// DisabledChecker answers whether an item is disabled at a point in time,
// at defaults to now
type DisabledChecker interface {
	IsDisabled(ctx context.Context, item Disableable, at ...time.Time) (bool, error)
}

// DisableOption configures a new disabled period
type DisableOption func(*DisabledPeriod)

// DisableFrom sets the start of the period, defaults to now
func DisableFrom(t time.Time) DisableOption {
	return func(p *DisabledPeriod) {
		p.DisabledFrom = t
	}
}

// DisableUntil sets the end of the period. An end at or before the start
// makes the period indefinite.
func DisableUntil(t time.Time) DisableOption {
	return func(p *DisabledPeriod) {
		p.DisabledUntil = &t
	}
}

// DisableReason records why the item was disabled
func DisableReason(reason string) DisableOption {
	return func(p *DisabledPeriod) {
		p.Reason = reason
	}
}

// Disablement manages disabled periods
type Disablement struct {
	store  DisablementStore
	now    Clock
	logger Logger
}

var _ DisabledChecker = (*Disablement)(nil)

// NewDisablement creates a Disablement backed by store
func NewDisablement(store DisablementStore) *Disablement {
	if store == nil {
		panic("Missing DisablementStore in disablement...")
	}
	return &Disablement{
		store:  store,
		now:    defaultClock,
		logger: defLogger{},
	}
}

// WithClock overrides the clock
func (d *Disablement) WithClock(c Clock) *Disablement {
	d.now = normalizeClock(c)
	return d
}

// WithLogger sets the logger
func (d *Disablement) WithLogger(l Logger) *Disablement {
	d.logger = normalizeLogger(l)
	return d
}

// Disable appends a new period for item. Existing periods are left as is.
func (d *Disablement) Disable(ctx context.Context, item Disableable, opts ...DisableOption) (*DisabledPeriod, error) {
	period := &DisabledPeriod{
		DisabledItemType: item.DisabledItemType(),
		DisabledItemID:   item.DisabledItemID(),
		DisabledFrom:     d.now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(period)
		}
	}

	if period.DisabledUntil != nil && !period.DisabledUntil.After(period.DisabledFrom) {
		period.DisabledUntil = nil
	}

	created, err := d.store.RecordDisabledPeriod(ctx, period)
	if err != nil {
		d.logger.Error("disable %s %s: %v", period.DisabledItemType, period.DisabledItemID, err)
		return nil, err
	}

	if u, ok := item.(*User); ok {
		u.DisabledPeriodID = &created.ID
	}

	return created, nil
}

// IsDisabled reports whether any period of item covers at
func (d *Disablement) IsDisabled(ctx context.Context, item Disableable, at ...time.Time) (bool, error) {
	period, err := d.CurrentPeriod(ctx, item, at...)
	if err != nil {
		return false, err
	}
	return period != nil, nil
}

// CurrentPeriod returns the period covering at, or nil
func (d *Disablement) CurrentPeriod(ctx context.Context, item Disableable, at ...time.Time) (*DisabledPeriod, error) {
	t := d.now()
	if len(at) > 0 {
		t = at[0]
	}

	periods, err := d.History(ctx, item)
	if err != nil {
		return nil, err
	}
	return CoveringAt(periods, t), nil
}

// History returns every period recorded for item, most recent first
func (d *Disablement) History(ctx context.Context, item Disableable) ([]*DisabledPeriod, error) {
	return d.store.DisabledPeriodsFor(ctx, item.DisabledItemType(), item.DisabledItemID())
}
