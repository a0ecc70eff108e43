package usersys

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStore persists login sessions. GetSession returns nil, nil when
// the session does not exist.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var _ SessionStore = (*sessions)(nil)

// NewSessionsRepository creates the bun backed session store
func NewSessionsRepository(db *bun.DB) SessionStore {
	handlers := repository.ModelHandlers[*Session]{
		NewRecord: func() *Session {
			return &Session{}
		},
		GetID: func(record *Session) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Session, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return &sessions{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (s *sessions) CreateSession(ctx context.Context, session *Session) (*Session, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return s.Repository.Create(ctx, session)
}

func (s *sessions) GetSession(ctx context.Context, id string) (*Session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	record := &Session{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *sessions) TouchSession(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	_, err = s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_access = ?", at).
		Where("id = ?", uid).
		Exec(ctx)
	return err
}

func (s *sessions) DeleteSession(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	_, err = s.db.NewDelete().
		Model((*Session)(nil)).
		Where("id = ?", uid).
		Exec(ctx)
	return err
}

func (s *sessions) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}
