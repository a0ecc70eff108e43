package usersys

import (
	"context"
	"errors"
	"time"
)

// Credentials are the inputs a strategy may read
type Credentials struct {
	Login      string `form:"login" json:"login"`
	Passphrase string `form:"passphrase" json:"passphrase"`
	Token      string `form:"token" json:"token"`
}

// LoginRequest is what a strategy receives: credentials, the identity
// scope of the caller and the request being served
type LoginRequest struct {
	Credentials
	Scope   []Scope
	Request *Request
}

// Strategy produces an identity from credentials. A nil user and nil
// error means no match, errors are reserved for infrastructure failures.
type Strategy interface {
	Login(ctx context.Context, req LoginRequest) (*User, error)
}

// StrategyFunc adapts a function to the Strategy interface
type StrategyFunc func(ctx context.Context, req LoginRequest) (*User, error)

// Login implements Strategy
func (f StrategyFunc) Login(ctx context.Context, req LoginRequest) (*User, error) {
	return f(ctx, req)
}

// LoginLookup finds identities by login and records successful logins
type LoginLookup interface {
	GetByLogin(ctx context.Context, login string, scopes ...Scope) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User, at time.Time) error
}

// PasswordStrategy authenticates a login and passphrase pair
type PasswordStrategy struct {
	users  LoginLookup
	hasher PassphraseHasher
	now    Clock
	logger Logger
}

var _ Strategy = (*PasswordStrategy)(nil)

// NewPasswordStrategy creates a password strategy, a nil hasher means bcrypt
func NewPasswordStrategy(users LoginLookup, hasher PassphraseHasher) *PasswordStrategy {
	if users == nil {
		panic("Missing LoginLookup in password strategy...")
	}
	return &PasswordStrategy{
		users:  users,
		hasher: normalizeHasher(hasher),
		now:    defaultClock,
		logger: defLogger{},
	}
}

// WithClock overrides the clock used for login tracking
func (s *PasswordStrategy) WithClock(c Clock) *PasswordStrategy {
	s.now = normalizeClock(c)
	return s
}

// WithLogger sets the logger
func (s *PasswordStrategy) WithLogger(l Logger) *PasswordStrategy {
	s.logger = normalizeLogger(l)
	return s
}

// Login implements Strategy
func (s *PasswordStrategy) Login(ctx context.Context, req LoginRequest) (*User, error) {
	if req.Login == "" || req.Passphrase == "" {
		return nil, nil
	}

	user, err := s.users.GetByLogin(ctx, req.Login, req.Scope...)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.hasher.ComparePassphrase(req.Passphrase, user.PassphraseHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassphrase) {
			s.logger.Warn("compare passphrase for %s: %v", user.LowercaseLogin, err)
		}
		return nil, nil
	}

	if err := s.users.TrackSuccessfulLogin(ctx, user, s.now()); err != nil {
		s.logger.Error("track login for %s: %v", user.LowercaseLogin, err)
	}

	return user, nil
}

// TokenResolver resolves security tokens
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*User, error)
}

// TokenStrategy authenticates with a security token. Scopes are not
// applied, the token itself identifies the user.
type TokenStrategy struct {
	tokens TokenResolver
}

var _ Strategy = (*TokenStrategy)(nil)

// NewTokenStrategy creates a token strategy
func NewTokenStrategy(tokens TokenResolver) *TokenStrategy {
	if tokens == nil {
		panic("Missing TokenResolver in token strategy...")
	}
	return &TokenStrategy{tokens: tokens}
}

// Login implements Strategy
func (s *TokenStrategy) Login(ctx context.Context, req LoginRequest) (*User, error) {
	if req.Token == "" {
		return nil, nil
	}
	return s.tokens.Resolve(ctx, req.Token)
}

// ChainedStrategy tries strategies in order and returns the first match
type ChainedStrategy struct {
	strategies []Strategy
}

var _ Strategy = (*ChainedStrategy)(nil)

// NewChainedStrategy creates a chain, order is significant
func NewChainedStrategy(strategies ...Strategy) *ChainedStrategy {
	c := &ChainedStrategy{}
	return c.Append(strategies...)
}

// Append adds strategies to the end of the chain
func (c *ChainedStrategy) Append(strategies ...Strategy) *ChainedStrategy {
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Len returns the number of strategies in the chain
func (c *ChainedStrategy) Len() int {
	return len(c.strategies)
}

// Login implements Strategy. A failing strategy does not stop the chain,
// its error is only returned when no later strategy matched.
func (c *ChainedStrategy) Login(ctx context.Context, req LoginRequest) (*User, error) {
	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		user, err := s.Login(ctx, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, errors.Join(errs...)
}

// WithTimeout bounds s to d. A strategy that does not answer in time is
// reported as a transport failure named after name.
func WithTimeout(s Strategy, d time.Duration, name string) Strategy {
	return StrategyFunc(func(ctx context.Context, req LoginRequest) (*User, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			user *User
			err  error
		}

		done := make(chan result, 1)
		go func() {
			user, err := s.Login(ctx, req)
			done <- result{user: user, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, NewTransportError(name, ctx.Err())
		case res := <-done:
			if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && !IsTransportError(res.err) {
				return nil, NewTransportError(name, res.err)
			}
			return res.user, res.err
		}
	})
}

// SSOVerifier checks credentials against a remote identity provider and
// returns the login it vouches for, or "" for no match
type SSOVerifier interface {
	Verify(ctx context.Context, creds Credentials) (string, error)
}

// SSOVerifierFunc adapts a function to the SSOVerifier interface
type SSOVerifierFunc func(ctx context.Context, creds Credentials) (string, error)

// Verify implements SSOVerifier
func (f SSOVerifierFunc) Verify(ctx context.Context, creds Credentials) (string, error) {
	return f(ctx, creds)
}

// SSOStrategy maps a remote verification onto a local identity. Verifier
// errors are reported as transport failures.
type SSOStrategy struct {
	name     string
	verifier SSOVerifier
	users    LoginLookup
	now      Clock
	logger   Logger
}

var _ Strategy = (*SSOStrategy)(nil)

// NewSSOStrategy creates an SSO strategy
func NewSSOStrategy(name string, verifier SSOVerifier, users LoginLookup) *SSOStrategy {
	if verifier == nil {
		panic("Missing SSOVerifier in sso strategy...")
	}
	if users == nil {
		panic("Missing LoginLookup in sso strategy...")
	}
	return &SSOStrategy{
		name:     name,
		verifier: verifier,
		users:    users,
		now:      defaultClock,
		logger:   defLogger{},
	}
}

// WithClock overrides the clock used for login tracking
func (s *SSOStrategy) WithClock(c Clock) *SSOStrategy {
	s.now = normalizeClock(c)
	return s
}

// WithLogger sets the logger
func (s *SSOStrategy) WithLogger(l Logger) *SSOStrategy {
	s.logger = normalizeLogger(l)
	return s
}

// Login implements Strategy
func (s *SSOStrategy) Login(ctx context.Context, req LoginRequest) (*User, error) {
	login, err := s.verifier.Verify(ctx, req.Credentials)
	if err != nil {
		s.logger.Warn("sso %s verification failed: %v", s.name, err)
		return nil, NewTransportError(s.name, err)
	}
	if login == "" {
		return nil, nil
	}

	user, err := s.users.GetByLogin(ctx, login, req.Scope...)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.users.TrackSuccessfulLogin(ctx, user, s.now()); err != nil {
		s.logger.Error("track login for %s: %v", user.LowercaseLogin, err)
	}
	return user, nil
}
