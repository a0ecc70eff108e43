package usersys

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserItemType is the disabled item type recorded for users
const UserItemType = "User"

// User is the account model. Passphrases are only ever stored as hashes.
type User struct {
	bun.BaseModel           `bun:"table:users,alias:usr"`
	ID                      uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login                   string         `bun:"login,notnull" json:"login,omitempty"`
	LowercaseLogin          string         `bun:"lowercase_login,notnull,unique" json:"lowercase_login,omitempty"`
	Email                   string         `bun:"email,nullzero,unique" json:"email,omitempty"`
	Nickname                string         `bun:"nickname" json:"nickname,omitempty"`
	PassphraseHash          string         `bun:"passphrase_hash,notnull" json:"-"`
	Verified                bool           `bun:"verified,notnull" json:"verified"`
	ResetPassphrase         bool           `bun:"reset_passphrase,notnull" json:"reset_passphrase"`
	SecurityToken           string         `bun:"security_token,nullzero,unique" json:"-"`
	SecurityTokenValidUntil *time.Time     `bun:"security_token_valid_until,nullzero" json:"-"`
	DisabledPeriodID        *uuid.UUID     `bun:"disabled_period_id,type:uuid,nullzero" json:"disabled_period_id,omitempty"`
	LastLogin               *time.Time     `bun:"last_login,nullzero" json:"last_login,omitempty"`
	PreviousLogin           *time.Time     `bun:"previous_login,nullzero" json:"previous_login,omitempty"`
	Metadata                map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt               *time.Time     `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt               *time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	// passphrase bookkeeping used by validation, never persisted
	passphraseAssigned   bool
	passphraseLength     int
	confirmationAssigned bool
	confirmationMismatch bool
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

// BeforeAppendModel keeps the lowercase login in sync with Login
func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		u.LowercaseLogin = NormalizeLogin(u.Login)
	}
	return nil
}

// IsPersisted reports whether the record was stored
func (u *User) IsPersisted() bool {
	return u != nil && u.CreatedAt != nil
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// DisplayName returns the nickname, falling back to the login
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Login
}

// DisabledItemType implements Disableable
func (u *User) DisabledItemType() string { return UserItemType }

// DisabledItemID implements Disableable
func (u *User) DisabledItemID() uuid.UUID { return u.ID }

// NormalizeLogin returns the case insensitive form of a login
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// DisabledPeriod is an interval during which an item is disabled. A nil
// DisabledUntil means the period never ends.
type DisabledPeriod struct {
	bun.BaseModel    `bun:"table:disabled_periods,alias:dp"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	DisabledItemType string     `bun:"disabled_item_type,notnull" json:"disabled_item_type"`
	DisabledItemID   uuid.UUID  `bun:"disabled_item_id,notnull,type:uuid" json:"disabled_item_id"`
	DisabledFrom     time.Time  `bun:"disabled_from,notnull" json:"disabled_from"`
	DisabledUntil    *time.Time `bun:"disabled_until,nullzero" json:"disabled_until,omitempty"`
	Reason           string     `bun:"reason" json:"reason,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
}

// Covers reports whether t falls inside the period
func (p *DisabledPeriod) Covers(t time.Time) bool {
	if p == nil || p.DisabledFrom.After(t) {
		return false
	}
	return p.DisabledUntil == nil || p.DisabledUntil.After(t)
}

// IsIndefinite reports whether the period has no end
func (p *DisabledPeriod) IsIndefinite() bool {
	return p != nil && p.DisabledUntil == nil
}

// Session is a server side login session
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Caller        string    `bun:"caller" json:"caller,omitempty"`
	IPAddress     string    `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string    `bun:"user_agent" json:"user_agent,omitempty"`
	LastAccess    time.Time `bun:"last_access,notnull" json:"last_access"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Models lists the bun models managed by the package, handy for schema
// creation in tests and demos
func Models() []any {
	return []any{
		(*User)(nil),
		(*DisabledPeriod)(nil),
		(*Session)(nil),
	}
}
