package usersys

import (
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Scope narrows an identity query
type Scope = repository.SelectCriteria

// ScopeVerified keeps verified identities
func ScopeVerified() Scope {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.verified = ?", true)
	}
}

// ScopeUnverified keeps identities still waiting for verification
func ScopeUnverified() Scope {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.verified = ?", false)
	}
}

// ScopeActiveAt keeps users not covered by any disabled period at t
func ScopeActiveAt(t time.Time) Scope {
	return ScopeActiveItemsAt(UserItemType, t)
}

// ScopeDisabledAt keeps users covered by at least one disabled period at t
func ScopeDisabledAt(t time.Time) Scope {
	return ScopeDisabledItemsAt(UserItemType, t)
}

// ScopeActiveItemsAt is ScopeActiveAt for any disableable table keyed by id
func ScopeActiveItemsAt(itemType string, t time.Time) Scope {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Join(`LEFT JOIN disabled_periods AS adp
				ON adp.disabled_item_type = ?
				AND adp.disabled_item_id = ?TableAlias.id
				AND adp.disabled_from <= ?
				AND (adp.disabled_until IS NULL OR adp.disabled_until > ?)`,
				itemType, t, t,
			).
			Where("adp.id IS NULL")
	}
}

// ScopeDisabledItemsAt is ScopeDisabledAt for any disableable table keyed by id
func ScopeDisabledItemsAt(itemType string, t time.Time) Scope {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(`EXISTS (
				SELECT 1 FROM disabled_periods AS ddp
				WHERE ddp.disabled_item_type = ?
				AND ddp.disabled_item_id = ?TableAlias.id
				AND ddp.disabled_from <= ?
				AND (ddp.disabled_until IS NULL OR ddp.disabled_until > ?)
			)`,
			itemType, t, t,
		)
	}
}

// ScopeLogins keeps identities whose login is one of logins, compared
// case insensitively
func ScopeLogins(logins ...string) Scope {
	normalized := make([]string, 0, len(logins))
	for _, l := range logins {
		normalized = append(normalized, NormalizeLogin(l))
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.lowercase_login IN (?)", bun.In(normalized))
	}
}
