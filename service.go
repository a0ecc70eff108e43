package usersys

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

const (
	NoticeStrategyUnavailable = "The authentication service is unavailable, please try again later."
	NoticeInvalidToken        = "The link you followed is invalid or has expired."
	NoticeVerificationSent    = "If the address is registered and not yet verified, a verification message is on its way."
	NoticeRecoverySent        = "If the address is registered, a recovery message is on its way."
	NoticeLoggedOut           = "You have been logged out."
	NoticeAccountInvalid      = "Please review the highlighted fields."
)

// Service runs the account flows: login, logout, sign up, verification
// and recovery. Every flow ends in an Outcome.
type Service struct {
	cfg         Config
	repo        RepositoryManager
	callers     *CallerRegistry
	outcomes    *OutcomeRegistry
	policy      *IdentityPolicy
	tokens      *TokenManager
	disablement *Disablement
	gate        *Gate
	notifier    Notifier
	activity    ActivitySink
	hasher      PassphraseHasher
	dests       Destinations
	useHashid   bool
	now         Clock
	logger      Logger

	routersMu sync.Mutex
	routers   map[string]*OutcomeRouter
}

// ServiceOption configures the service
type ServiceOption func(*Service) *Service

// WithServiceLogger sets the logger shared by the service components
func WithServiceLogger(l Logger) ServiceOption {
	return func(s *Service) *Service {
		s.logger = normalizeLogger(l)
		return s
	}
}

// WithServiceClock sets the clock shared by the service components
func WithServiceClock(c Clock) ServiceOption {
	return func(s *Service) *Service {
		s.now = normalizeClock(c)
		return s
	}
}

// WithNotifier sets the notifier delivering token messages
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) *Service {
		s.notifier = n
		return s
	}
}

// WithActivitySink sets the audit sink
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) *Service {
		s.activity = normalizeActivitySink(sink)
		return s
	}
}

// WithOutcomeRegistry replaces the default check registry
func WithOutcomeRegistry(reg *OutcomeRegistry) ServiceOption {
	return func(s *Service) *Service {
		s.outcomes = reg
		return s
	}
}

// WithPassphraseHasher replaces bcrypt
func WithPassphraseHasher(h PassphraseHasher) ServiceOption {
	return func(s *Service) *Service {
		s.hasher = h
		return s
	}
}

// WithServiceDestinations overrides the notice pages
func WithServiceDestinations(d Destinations) ServiceOption {
	return func(s *Service) *Service {
		s.dests = d.withDefaults()
		return s
	}
}

// WithHashidIDs derives new account ids from their login
func WithHashidIDs() ServiceOption {
	return func(s *Service) *Service {
		s.useHashid = true
		return s
	}
}

// NewService wires the account flows
func NewService(cfg Config, repo RepositoryManager, callers *CallerRegistry, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("Missing RepositoryManager in usersys service...")
	}
	if callers == nil {
		panic("Missing CallerRegistry in usersys service...")
	}
	if cfg == nil {
		cfg = DefaultOptions()
	}

	s := &Service{
		cfg:      cfg,
		repo:     repo,
		callers:  callers,
		activity: discardActivity,
		dests:    DefaultDestinations(),
		now:      defaultClock,
		logger:   defLogger{},
		routers:  map[string]*OutcomeRouter{},
	}
	for _, opt := range opts {
		if opt != nil {
			s = opt(s)
		}
	}

	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	s.hasher = normalizeHasher(s.hasher)
	s.policy = NewIdentityPolicy(cfg, s.hasher)
	s.tokens = NewTokenManager(repo.Users(), cfg).WithClock(s.now).WithLogger(s.logger)
	s.disablement = NewDisablement(repo).WithClock(s.now).WithLogger(s.logger)
	s.gate = NewGate(cfg, callers, s.disablement).
		WithDestinations(s.dests).
		WithClock(s.now).
		WithLogger(s.logger)

	if s.outcomes == nil {
		s.outcomes = NewOutcomeRegistry(DefaultOutcomeChecks(cfg, s.disablement, s.dests)...)
	}

	return s
}

func (s *Service) Config() Config                   { return s.cfg }
func (s *Service) Callers() *CallerRegistry         { return s.callers }
func (s *Service) Outcomes() *OutcomeRegistry       { return s.outcomes }
func (s *Service) Policy() *IdentityPolicy          { return s.policy }
func (s *Service) Tokens() *TokenManager            { return s.tokens }
func (s *Service) Disablement() *Disablement        { return s.disablement }
func (s *Service) Gate() *Gate                      { return s.gate }
func (s *Service) Repositories() RepositoryManager { return s.repo }

// Router returns the outcome router of caller, subscribing it on first use
func (s *Service) Router(caller string) *OutcomeRouter {
	s.routersMu.Lock()
	defer s.routersMu.Unlock()

	if r, ok := s.routers[caller]; ok {
		return r
	}

	r := s.outcomes.Subscribe(
		WithRouterDefault(Resolve(func(req *Request, user *User) string {
			return s.defaultDestination(req.Caller).For(req, user)
		})),
		WithRouterLogger(s.logger),
	)
	s.routers[caller] = r
	return r
}

// Login authenticates creds with the caller strategy and opens a session
func (s *Service) Login(ctx context.Context, req *Request, creds Credentials) (Outcome, error) {
	strategy, err := s.callers.Strategy(req.Caller)
	if err != nil {
		return Outcome{}, err
	}

	identities, err := s.callers.Identities(req.Caller)
	if err != nil {
		return Outcome{}, err
	}

	user, err := strategy.Login(ctx, LoginRequest{
		Credentials: creds,
		Scope:       identities.AuthenticationScope(),
		Request:     req,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		if IsTransportError(err) {
			s.logger.Warn("login strategy unavailable for caller %s: %v", req.Caller, err)
			s.record(ctx, ActivityEventLoginFailure, req, nil, map[string]any{
				"login":  creds.Login,
				"reason": string(ReasonStrategyUnavailable),
			})
			req.Flash(NoticeStrategyUnavailable)
			return Outcome{
				Location: s.callers.LoginURL(req.Caller, req),
				Reason:   ReasonStrategyUnavailable,
				Notice:   NoticeStrategyUnavailable,
			}, nil
		}
		return Outcome{}, err
	}

	if user == nil {
		s.record(ctx, ActivityEventLoginFailure, req, nil, map[string]any{
			"login":  creds.Login,
			"reason": string(ReasonAuthenticationFailed),
		})
		req.Flash(ErrAuthenticationFailed.Message)
		return Outcome{
			Location: s.callers.LoginURL(req.Caller, req),
			Reason:   ReasonAuthenticationFailed,
			Notice:   ErrAuthenticationFailed.Message,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if err := s.establish(ctx, req, user); err != nil {
		return Outcome{}, err
	}

	s.record(ctx, ActivityEventLoginSuccess, req, user, nil)
	return s.Router(req.Caller).Route(ctx, req, user)
}

// Logout closes the request session
func (s *Service) Logout(ctx context.Context, req *Request) (Outcome, error) {
	user, _ := req.Identity()

	if req.SessionID != "" {
		sessions, err := s.callers.Sessions(req.Caller)
		if err != nil {
			return Outcome{}, err
		}
		if err := sessions.DeleteSession(ctx, req.SessionID); err != nil {
			return Outcome{}, err
		}
	}

	req.ClearIdentity()
	req.Flash(NoticeLoggedOut)
	s.record(ctx, ActivityEventLogout, req, user, nil)

	return Outcome{
		Location: s.callers.LoginURL(req.Caller, req),
		Reason:   ReasonLoggedOut,
		Notice:   NoticeLoggedOut,
	}, nil
}

// CreateAccount signs a user up, logs them in and routes them. Validation
// failures return the registration outcome together with the error.
func (s *Service) CreateAccount(ctx context.Context, req *Request, input AccountInput) (*User, Outcome, error) {
	if !s.cfg.GetPublicAccountCreation() {
		return nil, Outcome{}, ErrAccountCreationDisabled
	}

	var user *User
	handler := &CreateAccountHandler{
		repo:     s.repo,
		policy:   s.policy,
		tokens:   s.tokens,
		notifier: s.notifier,
		cfg:      s.cfg,
		logger:   s.logger,
	}

	err := handler.Execute(ctx, CreateAccountMessage{
		AccountInput: input,
		UseHashid:    s.useHashid,
		OnResponse: func(u *User) {
			user = u
		},
	})
	if err != nil {
		if IsValidationError(err) {
			req.Flash(NoticeAccountInvalid)
			return nil, Outcome{
				Location: s.dests.Registration.For(req, nil),
				Reason:   ReasonValidationFailed,
				Notice:   NoticeAccountInvalid,
			}, err
		}
		return nil, Outcome{}, err
	}

	s.record(ctx, ActivityEventAccountCreated, req, user, nil)

	if err := s.establish(ctx, req, user); err != nil {
		return user, Outcome{}, err
	}

	out, err := s.Router(req.Caller).Route(ctx, req, user)
	return user, out, err
}

// Verify marks the owner of token as verified and logs them in
func (s *Service) Verify(ctx context.Context, req *Request, token string) (Outcome, error) {
	user, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return Outcome{}, err
	}
	if user == nil {
		return s.invalidToken(req, s.callers.LoginURL(req.Caller, req)), nil
	}

	user.Verified = true
	user.SecurityToken = ""
	user.SecurityTokenValidUntil = nil
	if err := s.repo.Users().UpdateAccount(ctx, user); err != nil {
		return Outcome{}, err
	}

	s.record(ctx, ActivityEventAccountVerified, req, user, nil)

	if err := s.establish(ctx, req, user); err != nil {
		return Outcome{}, err
	}
	return s.Router(req.Caller).Route(ctx, req, user)
}

// RequestVerification sends a new verification message. The outcome does
// not reveal whether the address is registered.
func (s *Service) RequestVerification(ctx context.Context, req *Request, email string) (Outcome, error) {
	handler := &RequestVerificationHandler{
		repo:     s.repo,
		tokens:   s.tokens,
		notifier: s.notifier,
		logger:   s.logger,
	}

	err := handler.Execute(ctx, RequestVerificationMessage{
		Email: email,
		OnResponse: func(u *User) {
			s.record(ctx, ActivityEventVerificationRequest, req, u, nil)
		},
	})
	if err != nil {
		return Outcome{}, err
	}

	req.Flash(NoticeVerificationSent)
	return Outcome{
		Location: s.callers.LoginURL(req.Caller, req),
		Reason:   ReasonNotificationSent,
		Notice:   NoticeVerificationSent,
	}, nil
}

// SendRecovery issues a recovery token and delivers it. The outcome does
// not reveal whether the address is registered.
func (s *Service) SendRecovery(ctx context.Context, req *Request, email string) (Outcome, error) {
	handler := &RecoveryRequestHandler{
		repo:     s.repo,
		tokens:   s.tokens,
		notifier: s.notifier,
		logger:   s.logger,
	}

	err := handler.Execute(ctx, RecoveryRequestMessage{
		Email: email,
		OnResponse: func(u *User) {
			s.record(ctx, ActivityEventRecoveryRequest, req, u, nil)
		},
	})
	if err != nil {
		return Outcome{}, err
	}

	req.Flash(NoticeRecoverySent)
	return Outcome{
		Location: s.callers.LoginURL(req.Caller, req),
		Reason:   ReasonNotificationSent,
		Notice:   NoticeRecoverySent,
	}, nil
}

// PerformRecovery logs in the owner of a recovery token and flags the
// account for a passphrase reset. The token is consumed.
func (s *Service) PerformRecovery(ctx context.Context, req *Request, token string) (Outcome, error) {
	user, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return Outcome{}, err
	}
	if user == nil {
		return s.invalidToken(req, s.dests.Recovery.For(req, nil)), nil
	}

	user.ResetPassphrase = true
	user.SecurityToken = ""
	user.SecurityTokenValidUntil = nil
	if err := s.repo.Users().UpdateAccount(ctx, user); err != nil {
		return Outcome{}, err
	}

	s.record(ctx, ActivityEventRecoveryPerformed, req, user, nil)

	if err := s.establish(ctx, req, user); err != nil {
		return Outcome{}, err
	}
	return s.Router(req.Caller).Route(ctx, req, user)
}

// ChangePassphrase sets a new passphrase and clears the reset flag
func (s *Service) ChangePassphrase(ctx context.Context, user *User, passphrase, confirmation string) error {
	if passphrase == "" {
		return newValidationError(map[string]string{"passphrase": "cannot be blank"})
	}
	if err := s.policy.SetPassphrase(user, passphrase); err != nil {
		return newValidationError(map[string]string{"passphrase": err.Error()})
	}
	s.policy.SetPassphraseConfirmation(user, confirmation)

	if err := s.policy.Validate(ctx, user, s.repo.Users()); err != nil {
		return err
	}

	user.ResetPassphrase = false
	if err := s.repo.Users().UpdateAccount(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update passphrase")
	}
	return nil
}

// Disable records a disabled period for user
func (s *Service) Disable(ctx context.Context, user *User, opts ...DisableOption) (*DisabledPeriod, error) {
	period, err := s.disablement.Disable(ctx, user, opts...)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"period_id":     period.ID.String(),
		"disabled_from": period.DisabledFrom,
	}
	if period.DisabledUntil != nil {
		meta["disabled_until"] = *period.DisabledUntil
	}
	s.record(ctx, ActivityEventAccountDisabled, nil, user, meta)
	return period, nil
}

// CurrentIdentity resolves the identity of the request session
func (s *Service) CurrentIdentity(ctx context.Context, req *Request) (*User, error) {
	return s.gate.CurrentIdentity(ctx, req)
}

func (s *Service) establish(ctx context.Context, req *Request, user *User) error {
	sessions, err := s.callers.Sessions(req.Caller)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if req.SessionID != "" {
		if err := sessions.DeleteSession(ctx, req.SessionID); err != nil {
			s.logger.Warn("drop previous session %s: %v", req.SessionID, err)
		}
	}

	if s.cfg.GetSingleSession() {
		if err := sessions.DeleteUserSessions(ctx, user.ID); err != nil {
			return err
		}
	}

	now := s.now()
	session, err := sessions.CreateSession(ctx, &Session{
		UserID:     user.ID,
		Caller:     req.Caller,
		IPAddress:  req.RemoteAddr,
		UserAgent:  req.UserAgent,
		LastAccess: now,
		CreatedAt:  now,
	})
	if err != nil {
		return err
	}

	req.SessionID = session.ID.String()
	req.SetIdentity(user)
	return nil
}

func (s *Service) defaultDestination(caller string) Destination {
	if d := s.callers.DefaultDestination(caller); !d.IsZero() {
		return d
	}
	return s.cfg.GetDefaultDestination()
}

func (s *Service) invalidToken(req *Request, location string) Outcome {
	req.Flash(NoticeInvalidToken)
	return Outcome{
		Location: location,
		Reason:   ReasonInvalidToken,
		Notice:   NoticeInvalidToken,
	}
}

func (s *Service) record(ctx context.Context, kind ActivityEventType, req *Request, user *User, meta map[string]any) {
	evt := ActivityEvent{
		EventType:  kind,
		Metadata:   meta,
		OccurredAt: s.now(),
	}
	if req != nil {
		evt.Caller = req.Caller
	}
	if user != nil {
		evt.UserID = user.ID.String()
	}

	if err := s.activity.Record(ctx, evt); err != nil {
		s.logger.Error("record activity %s: %v", kind, err)
	}
}
