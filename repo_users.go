package usersys

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackSuccessfulLoginSQL shifts the last login into previous_login
var TrackSuccessfulLoginSQL = `UPDATE "users"
SET
	"previous_login" = "last_login",
	"last_login" = ?,
	"updated_at" = ?
WHERE
	"id" = ?;`

// Users is the account repository
type Users interface {
	repository.Repository[*User]
	UniquenessChecker
	IdentitySource

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByLogin(ctx context.Context, login string, scopes ...Scope) (*User, error)
	GetByLoginTx(ctx context.Context, tx bun.IDB, login string, scopes ...Scope) (*User, error)
	GetByEmail(ctx context.Context, email string, scopes ...Scope) (*User, error)
	GetBySecurityToken(ctx context.Context, token string, at time.Time) (*User, error)
	ListScoped(ctx context.Context, scopes ...Scope) ([]*User, error)

	TrackSuccessfulLogin(ctx context.Context, user *User, at time.Time) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) error
	SaveSecurityToken(ctx context.Context, user *User) error
	SaveSecurityTokenTx(ctx context.Context, tx bun.IDB, user *User) error
	UpdateAccount(ctx context.Context, user *User) error
	UpdateAccountTx(ctx context.Context, tx bun.IDB, user *User) error
	SetDisabledPeriodTx(ctx context.Context, tx bun.IDB, userID, periodID uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	now   Clock
	scope []Scope
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock overrides the clock used for timestamps
func WithUsersClock(c Clock) UsersOption {
	return func(u *users) {
		u.now = normalizeClock(c)
	}
}

// WithAuthenticationScope restricts which identities may authenticate
func WithAuthenticationScope(scopes ...Scope) UsersOption {
	return func(u *users) {
		u.scope = append(u.scope, scopes...)
	}
}

// NewUsersRepository creates the bun backed users repository
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "lowercase_login"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user, a.now())
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByLogin(ctx context.Context, login string, scopes ...Scope) (*User, error) {
	return a.GetByLoginTx(ctx, a.db, login, scopes...)
}

func (a *users) GetByLoginTx(ctx context.Context, tx bun.IDB, login string, scopes ...Scope) (*User, error) {
	return a.findOne(ctx, tx, "lowercase_login", NormalizeLogin(login), scopes...)
}

func (a *users) GetByEmail(ctx context.Context, email string, scopes ...Scope) (*User, error) {
	return a.findOne(ctx, a.db, "email", strings.TrimSpace(email), scopes...)
}

func (a *users) GetBySecurityToken(ctx context.Context, token string, at time.Time) (*User, error) {
	return a.findOne(ctx, a.db, "security_token", token, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(
			"(?TableAlias.security_token_valid_until IS NULL OR ?TableAlias.security_token_valid_until > ?)",
			at,
		)
	})
}

func (a *users) ListScoped(ctx context.Context, scopes ...Scope) ([]*User, error) {
	records := []*User{}
	q := a.db.NewSelect().Model(&records)
	for _, s := range scopes {
		q.Apply(s)
	}
	if err := q.Order("usr.lowercase_login ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// FindIdentity implements IdentitySource, missing records return nil
func (a *users) FindIdentity(ctx context.Context, id uuid.UUID) (*User, error) {
	record, err := a.findOne(ctx, a.db, "id", id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// AuthenticationScope implements IdentitySource
func (a *users) AuthenticationScope() []Scope {
	return a.scope
}

func (a *users) LoginTaken(ctx context.Context, lowercaseLogin string, except uuid.UUID) (bool, error) {
	return a.exists(ctx, "lowercase_login", lowercaseLogin, except)
}

func (a *users) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	return a.exists(ctx, "email", email, except)
}

func (a *users) SecurityTokenTaken(ctx context.Context, token string, except uuid.UUID) (bool, error) {
	return a.exists(ctx, "security_token", token, except)
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User, at time.Time) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user, at)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) error {
	if _, err := tx.NewRaw(TrackSuccessfulLoginSQL, at, a.now(), user.ID).Exec(ctx); err != nil {
		return err
	}

	user.PreviousLogin = user.LastLogin
	user.LastLogin = &at
	return nil
}

func (a *users) SaveSecurityToken(ctx context.Context, user *User) error {
	return a.SaveSecurityTokenTx(ctx, a.db, user)
}

func (a *users) SaveSecurityTokenTx(ctx context.Context, tx bun.IDB, user *User) error {
	return a.updateColumns(ctx, tx, user, "security_token", "security_token_valid_until")
}

func (a *users) UpdateAccount(ctx context.Context, user *User) error {
	return a.UpdateAccountTx(ctx, a.db, user)
}

func (a *users) UpdateAccountTx(ctx context.Context, tx bun.IDB, user *User) error {
	return a.updateColumns(ctx, tx, user,
		"login", "lowercase_login", "email", "nickname", "passphrase_hash", "verified", "reset_passphrase",
		"security_token", "security_token_valid_until",
	)
}

func (a *users) SetDisabledPeriodTx(ctx context.Context, tx bun.IDB, userID, periodID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("disabled_period_id = ?", periodID).
		Set("updated_at = ?", a.now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (a *users) updateColumns(ctx context.Context, tx bun.IDB, user *User, columns ...string) error {
	now := a.now()
	user.UpdatedAt = &now

	_, err := tx.NewUpdate().
		Model(user).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column string, value any, scopes ...Scope) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)
	for _, s := range scopes {
		q.Apply(s)
	}

	err := q.
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) exists(ctx context.Context, column string, value any, except uuid.UUID) (bool, error) {
	q := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.? = ?", bun.Ident(column), value)
	if except != uuid.Nil {
		q.Where("?TableAlias.id != ?", except)
	}
	return q.Exists(ctx)
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.LowercaseLogin = NormalizeLogin(record.Login)

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
