package usersys

import "context"

// AllowList restricts access to the listed logins, empty allows everyone
type AllowList []string

// AllowLogins builds an allow list from logins
func AllowLogins(logins ...string) AllowList {
	out := make(AllowList, 0, len(logins))
	for _, l := range logins {
		if l = NormalizeLogin(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// AllowUsers builds an allow list from identities
func AllowUsers(users ...*User) AllowList {
	out := make(AllowList, 0, len(users))
	for _, u := range users {
		if u != nil {
			out = append(out, NormalizeLogin(u.Login))
		}
	}
	return out
}

// Permits reports whether user is on the list
func (a AllowList) Permits(user *User) bool {
	if user == nil {
		return false
	}
	if len(a) == 0 {
		return true
	}
	login := NormalizeLogin(user.Login)
	for _, l := range a {
		if NormalizeLogin(l) == login {
			return true
		}
	}
	return false
}

// Gate decides whether a request may reach a protected resource
type Gate struct {
	cfg      Config
	callers  *CallerRegistry
	disabled DisabledChecker
	dests    Destinations
	now      Clock
	logger   Logger
}

// NewGate creates an access gate
func NewGate(cfg Config, callers *CallerRegistry, disabled DisabledChecker) *Gate {
	if callers == nil {
		panic("Missing CallerRegistry in gate...")
	}
	if disabled == nil {
		panic("Missing DisabledChecker in gate...")
	}
	if cfg == nil {
		cfg = DefaultOptions()
	}
	return &Gate{
		cfg:      cfg,
		callers:  callers,
		disabled: disabled,
		dests:    DefaultDestinations(),
		now:      defaultClock,
		logger:   defLogger{},
	}
}

// WithDestinations overrides the notice pages
func (g *Gate) WithDestinations(d Destinations) *Gate {
	g.dests = d.withDefaults()
	return g
}

// WithClock overrides the clock
func (g *Gate) WithClock(c Clock) *Gate {
	g.now = normalizeClock(c)
	return g
}

// WithLogger sets the logger
func (g *Gate) WithLogger(l Logger) *Gate {
	g.logger = normalizeLogger(l)
	return g
}

// CurrentIdentity resolves the identity behind the request session. The
// result is memoized on req. Stale sessions are dropped.
func (g *Gate) CurrentIdentity(ctx context.Context, req *Request) (*User, error) {
	if user, ok := req.Identity(); ok {
		return user, nil
	}

	if req.SessionID == "" {
		req.SetIdentity(nil)
		return nil, nil
	}

	sessions, err := g.callers.Sessions(req.Caller)
	if err != nil {
		return nil, err
	}

	session, err := sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		g.logger.Debug("session %s not found for caller %s", req.SessionID, req.Caller)
		req.ClearIdentity()
		return nil, nil
	}

	identities, err := g.callers.Identities(req.Caller)
	if err != nil {
		return nil, err
	}

	user, err := identities.FindIdentity(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if err := sessions.DeleteSession(ctx, req.SessionID); err != nil {
			g.logger.Warn("drop orphan session %s: %v", req.SessionID, err)
		}
		req.ClearIdentity()
		return nil, nil
	}

	if err := sessions.TouchSession(ctx, req.SessionID, g.now()); err != nil {
		g.logger.Warn("touch session %s: %v", req.SessionID, err)
	}

	req.SetIdentity(user)
	return user, nil
}

// RequireLogin requires any authenticated identity
func (g *Gate) RequireLogin(ctx context.Context, req *Request) (Decision, error) {
	return g.RequireLoginAs(ctx, req, nil)
}

// RequireLoginAs requires an authenticated identity on allow. Rejected
// requests remember their target and are sent to the caller login page.
func (g *Gate) RequireLoginAs(ctx context.Context, req *Request, allow AllowList) (Decision, error) {
	user, err := g.CurrentIdentity(ctx, req)
	if err != nil {
		return Decision{}, err
	}

	if !allow.Permits(user) {
		reason := ReasonLoginRequired
		if user != nil {
			reason = ReasonNotAllowed
		}

		req.RememberReturn()
		req.Flash(NoticeLoginRequired)

		return Decision{
			Allowed: false,
			User:    user,
			Outcome: Outcome{
				Location: g.callers.LoginURL(req.Caller, req),
				Reason:   reason,
				Notice:   NoticeLoginRequired,
			},
		}, nil
	}

	return g.Validate(ctx, req, user)
}

// Validate applies the account state rules to an authenticated identity:
// disabled identities first, then unverified ones when verification is
// required
func (g *Gate) Validate(ctx context.Context, req *Request, user *User) (Decision, error) {
	off, err := g.disabled.IsDisabled(ctx, user, g.now())
	if err != nil {
		return Decision{}, err
	}
	if off {
		req.Flash(NoticeAccountDisabled)
		return Decision{
			User: user,
			Outcome: Outcome{
				Location: g.dests.DisabledNotice.For(req, user),
				Reason:   ReasonDisabled,
				Notice:   NoticeAccountDisabled,
			},
		}, nil
	}

	if g.cfg.GetVerifyEmailRequired() && !user.Verified {
		req.Flash(NoticeVerificationRequired)
		return Decision{
			User: user,
			Outcome: Outcome{
				Location: g.dests.VerificationRequest.For(req, user),
				Reason:   ReasonUnverified,
				Notice:   NoticeVerificationRequired,
			},
		}, nil
	}

	return Decision{Allowed: true, User: user}, nil
}
