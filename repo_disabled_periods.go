package usersys

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DisabledPeriods stores disabled periods. Rows are append only.
type DisabledPeriods interface {
	repository.Repository[*DisabledPeriod]

	Append(ctx context.Context, period *DisabledPeriod) (*DisabledPeriod, error)
	AppendTx(ctx context.Context, tx bun.IDB, period *DisabledPeriod) (*DisabledPeriod, error)
	ListFor(ctx context.Context, itemType string, itemID uuid.UUID) ([]*DisabledPeriod, error)
}

type disabledPeriods struct {
	repository.Repository[*DisabledPeriod]
	db  *bun.DB
	now Clock
}

// NewDisabledPeriodsRepository creates the bun backed repository
func NewDisabledPeriodsRepository(db *bun.DB, now Clock) DisabledPeriods {
	handlers := repository.ModelHandlers[*DisabledPeriod]{
		NewRecord: func() *DisabledPeriod {
			return &DisabledPeriod{}
		},
		GetID: func(record *DisabledPeriod) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *DisabledPeriod, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return &disabledPeriods{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
		now:        normalizeClock(now),
	}
}

func (r *disabledPeriods) Append(ctx context.Context, period *DisabledPeriod) (*DisabledPeriod, error) {
	return r.AppendTx(ctx, r.db, period)
}

func (r *disabledPeriods) AppendTx(ctx context.Context, tx bun.IDB, period *DisabledPeriod) (*DisabledPeriod, error) {
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	if period.CreatedAt == nil {
		now := r.now()
		period.CreatedAt = &now
	}
	return r.Repository.CreateTx(ctx, tx, period)
}

// ListFor returns the periods of an item, most recent first
func (r *disabledPeriods) ListFor(ctx context.Context, itemType string, itemID uuid.UUID) ([]*DisabledPeriod, error) {
	records := []*DisabledPeriod{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.disabled_item_type = ?", itemType).
		Where("?TableAlias.disabled_item_id = ?", itemID).
		Order("dp.disabled_from DESC", "dp.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CoveringAt returns the first period covering t, most recent first
func CoveringAt(periods []*DisabledPeriod, t time.Time) *DisabledPeriod {
	for _, p := range periods {
		if p.Covers(t) {
			return p
		}
	}
	return nil
}
