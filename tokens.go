package usersys

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const tokenGenerationAttempts = 5

// ErrTokenCollision is returned when no unique token could be generated
var ErrTokenCollision = errors.New("unable to generate a unique security token")

// TokenStore persists security tokens on identities
type TokenStore interface {
	SaveSecurityToken(ctx context.Context, user *User) error
	GetBySecurityToken(ctx context.Context, token string, at time.Time) (*User, error)
	SecurityTokenTaken(ctx context.Context, token string, except uuid.UUID) (bool, error)
}

// TokenOption configures a single token issue
type TokenOption func(*tokenIssue)

type tokenIssue struct {
	duration time.Duration
	noExpiry bool
}

// WithTokenDuration overrides the configured token lifetime. Zero or
// negative durations produce a token that is already expired.
func WithTokenDuration(d time.Duration) TokenOption {
	return func(t *tokenIssue) {
		t.duration = d
		t.noExpiry = false
	}
}

// WithoutTokenExpiry issues a token that never expires
func WithoutTokenExpiry() TokenOption {
	return func(t *tokenIssue) {
		t.noExpiry = true
	}
}

// TokenManager issues and resolves the single use tokens behind email
// verification and passphrase recovery links
type TokenManager struct {
	store    TokenStore
	alphabet []rune
	min      int
	max      int
	duration time.Duration
	now      Clock
	random   io.Reader
	logger   Logger
}

// NewTokenManager creates a token manager
func NewTokenManager(store TokenStore, cfg Config) *TokenManager {
	if store == nil {
		panic("Missing TokenStore in token manager...")
	}
	if cfg == nil {
		cfg = DefaultOptions()
	}

	shortest, longest := cfg.GetTokenMinLength(), cfg.GetTokenMaxLength()
	if longest < shortest {
		longest = shortest
	}

	return &TokenManager{
		store:    store,
		alphabet: []rune(cfg.GetTokenAlphabet()),
		min:      shortest,
		max:      longest,
		duration: cfg.GetTokenDuration(),
		now:      defaultClock,
		random:   rand.Reader,
		logger:   defLogger{},
	}
}

// WithClock overrides the clock
func (m *TokenManager) WithClock(c Clock) *TokenManager {
	m.now = normalizeClock(c)
	return m
}

// WithRandom overrides the entropy source
func (m *TokenManager) WithRandom(r io.Reader) *TokenManager {
	if r != nil {
		m.random = r
	}
	return m
}

// WithLogger sets the logger
func (m *TokenManager) WithLogger(l Logger) *TokenManager {
	m.logger = normalizeLogger(l)
	return m
}

// Generate returns a random token drawn from the alphabet, its length is
// uniform in [min, max]
func (m *TokenManager) Generate() (string, error) {
	length := m.min
	if m.max > m.min {
		n, err := rand.Int(m.random, big.NewInt(int64(m.max-m.min+1)))
		if err != nil {
			return "", err
		}
		length += int(n.Int64())
	}

	size := big.NewInt(int64(len(m.alphabet)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(m.random, size)
		if err != nil {
			return "", err
		}
		out[i] = m.alphabet[n.Int64()]
	}
	return string(out), nil
}

// Issue assigns a fresh token to user. Persisted users are saved right
// away, new records keep the token in memory until they are created.
func (m *TokenManager) Issue(ctx context.Context, user *User, opts ...TokenOption) (string, error) {
	issue := &tokenIssue{duration: m.duration}
	for _, opt := range opts {
		if opt != nil {
			opt(issue)
		}
	}

	token, err := m.unique(ctx, user.ID)
	if err != nil {
		return "", err
	}

	user.SecurityToken = token
	if issue.noExpiry {
		user.SecurityTokenValidUntil = nil
	} else {
		until := m.now().Add(issue.duration)
		user.SecurityTokenValidUntil = &until
	}

	if user.IsPersisted() {
		if err := m.store.SaveSecurityToken(ctx, user); err != nil {
			m.logger.Error("save security token for %s: %v", user.ID, err)
			return "", err
		}
	}

	return token, nil
}

// Resolve returns the identity owning a non expired token. Unknown or
// expired tokens return nil, nil.
func (m *TokenManager) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	user, err := m.store.GetBySecurityToken(ctx, token, m.now())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Current returns the token of user if it is still valid
func (m *TokenManager) Current(user *User) (string, bool) {
	if user.SecurityToken == "" {
		return "", false
	}
	if user.SecurityTokenValidUntil != nil && !user.SecurityTokenValidUntil.After(m.now()) {
		return "", false
	}
	return user.SecurityToken, true
}

// LazyGet returns the current token of user, issuing and persisting a new
// one when there is none or it expired
func (m *TokenManager) LazyGet(ctx context.Context, user *User, opts ...TokenOption) (string, error) {
	if token, ok := m.Current(user); ok {
		return token, nil
	}
	return m.Issue(ctx, user, opts...)
}

// Consume clears the token of user so the link can not be used again
func (m *TokenManager) Consume(ctx context.Context, user *User) error {
	user.SecurityToken = ""
	user.SecurityTokenValidUntil = nil
	if !user.IsPersisted() {
		return nil
	}
	return m.store.SaveSecurityToken(ctx, user)
}

func (m *TokenManager) unique(ctx context.Context, except uuid.UUID) (string, error) {
	for i := 0; i < tokenGenerationAttempts; i++ {
		token, err := m.Generate()
		if err != nil {
			return "", err
		}

		taken, err := m.store.SecurityTokenTaken(ctx, token, except)
		if err != nil {
			return "", err
		}
		if !taken {
			return token, nil
		}
	}
	return "", ErrTokenCollision
}
