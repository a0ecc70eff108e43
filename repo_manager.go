package usersys

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DisablementStore

	Users() Users
	DisabledPeriods() DisabledPeriods
	Sessions() SessionStore
}

type mngr struct {
	db              *bun.DB
	users           Users
	disabledPeriods DisabledPeriods
	sessions        SessionStore
}

// ManagerOption configures the repository manager
type ManagerOption func(*managerConfig)

type managerConfig struct {
	now      Clock
	userOpts []UsersOption
	sessions SessionStore
}

// WithManagerClock sets the clock shared by the repositories
func WithManagerClock(c Clock) ManagerOption {
	return func(m *managerConfig) {
		m.now = c
	}
}

// WithManagerUsersOptions forwards options to the users repository
func WithManagerUsersOptions(opts ...UsersOption) ManagerOption {
	return func(m *managerConfig) {
		m.userOpts = append(m.userOpts, opts...)
	}
}

// WithManagerSessionStore replaces the bun session store, e.g. with the
// redis store
func WithManagerSessionStore(store SessionStore) ManagerOption {
	return func(m *managerConfig) {
		m.sessions = store
	}
}

// NewRepositoryManager creates the bun backed repositories
func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	cfg := &managerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	now := normalizeClock(cfg.now)

	sessions := cfg.sessions
	if sessions == nil {
		sessions = NewSessionsRepository(db)
	}

	return &mngr{
		db:              db,
		users:           NewUsersRepository(db, append([]UsersOption{WithUsersClock(now)}, cfg.userOpts...)...),
		disabledPeriods: NewDisabledPeriodsRepository(db, now),
		sessions:        sessions,
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.disabledPeriods == nil {
		return errors.New("repository disabledPeriods should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// RecordDisabledPeriod appends the period and points the user's current
// disabled period at it in the same transaction
func (m mngr) RecordDisabledPeriod(ctx context.Context, period *DisabledPeriod) (*DisabledPeriod, error) {
	var out *DisabledPeriod
	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := m.disabledPeriods.AppendTx(ctx, tx, period)
		if err != nil {
			return err
		}

		if created.DisabledItemType == UserItemType {
			if err := m.users.SetDisabledPeriodTx(ctx, tx, created.DisabledItemID, created.ID); err != nil {
				return err
			}
		}

		out = created
		return nil
	})
	return out, err
}

func (m mngr) DisabledPeriodsFor(ctx context.Context, itemType string, itemID uuid.UUID) ([]*DisabledPeriod, error) {
	return m.disabledPeriods.ListFor(ctx, itemType, itemID)
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) DisabledPeriods() DisabledPeriods {
	return m.disabledPeriods
}

func (m mngr) Sessions() SessionStore {
	return m.sessions
}
