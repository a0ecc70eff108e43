package usersys

import (
	"context"
	"sync"
)

// OutcomeCheckFunc inspects an authenticated identity and returns a
// destination, or nil to let the next check decide
type OutcomeCheckFunc func(ctx context.Context, req *Request, user *User) (*Outcome, error)

// OutcomeCheck is a named entry of the routing chain
type OutcomeCheck struct {
	Name  string
	Check OutcomeCheckFunc
}

// OutcomeAddon bundles checks contributed by an optional feature
type OutcomeAddon interface {
	InstallOutcomeChecks(reg *OutcomeRegistry) error
}

// OutcomeAddonFunc adapts a function to the OutcomeAddon interface
type OutcomeAddonFunc func(reg *OutcomeRegistry) error

// InstallOutcomeChecks implements OutcomeAddon
func (f OutcomeAddonFunc) InstallOutcomeChecks(reg *OutcomeRegistry) error {
	return f(reg)
}

// OutcomeRegistry publishes routing checks to every subscribed router.
// Checks registered after a router subscribed are pushed to it.
type OutcomeRegistry struct {
	mu          sync.RWMutex
	checks      []OutcomeCheck
	subscribers []*OutcomeRouter
}

// NewOutcomeRegistry creates a registry seeded with checks, in order
func NewOutcomeRegistry(checks ...OutcomeCheck) *OutcomeRegistry {
	reg := &OutcomeRegistry{}
	for _, c := range checks {
		_ = reg.Register(c.Name, c.Check)
	}
	return reg
}

// Register appends a check to the end of the chain
func (r *OutcomeRegistry) Register(name string, fn OutcomeCheckFunc) error {
	return r.insert(OutcomeCheck{Name: name, Check: fn}, "")
}

// RegisterBefore inserts a check ahead of the named one, or at the end
// when before is not registered
func (r *OutcomeRegistry) RegisterBefore(before, name string, fn OutcomeCheckFunc) error {
	return r.insert(OutcomeCheck{Name: name, Check: fn}, before)
}

// Include installs addons
func (r *OutcomeRegistry) Include(addons ...OutcomeAddon) error {
	for _, a := range addons {
		if a == nil {
			continue
		}
		if err := a.InstallOutcomeChecks(r); err != nil {
			return err
		}
	}
	return nil
}

// Checks returns the registered check names in order
func (r *OutcomeRegistry) Checks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return checkNames(r.checks)
}

// Subscribe creates a router that follows this registry
func (r *OutcomeRegistry) Subscribe(opts ...RouterOption) *OutcomeRouter {
	r.mu.Lock()
	defer r.mu.Unlock()

	router := &OutcomeRouter{
		chain:  append([]OutcomeCheck(nil), r.checks...),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(router)
		}
	}

	r.subscribers = append(r.subscribers, router)
	return router
}

func (r *OutcomeRegistry) insert(check OutcomeCheck, before string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.checks {
		if c.Name == check.Name {
			return ErrDuplicateOutcomeCheck.Clone().WithMetadata(map[string]any{
				"check": check.Name,
			})
		}
	}

	r.checks = insertCheck(r.checks, check, before)
	for _, sub := range r.subscribers {
		sub.push(check, before)
	}
	return nil
}

// RouterOption configures a subscribed router
type RouterOption func(*OutcomeRouter)

// WithRouterDefault sets the destination used when no check matched and
// there is no pending return target
func WithRouterDefault(dest Destination) RouterOption {
	return func(o *OutcomeRouter) {
		o.fallback = dest
	}
}

// WithRouterLogger sets the router logger
func WithRouterLogger(l Logger) RouterOption {
	return func(o *OutcomeRouter) {
		o.logger = normalizeLogger(l)
	}
}

// OutcomeRouter decides where a user goes after authenticating
type OutcomeRouter struct {
	mu       sync.RWMutex
	chain    []OutcomeCheck
	fallback Destination
	logger   Logger
}

// Checks returns the check names this router walks, in order
func (o *OutcomeRouter) Checks() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return checkNames(o.chain)
}

// Route walks the chain. The first check returning an outcome wins,
// otherwise the pending return target is consumed, otherwise the default.
func (o *OutcomeRouter) Route(ctx context.Context, req *Request, user *User) (Outcome, error) {
	o.mu.RLock()
	chain := append([]OutcomeCheck(nil), o.chain...)
	o.mu.RUnlock()

	for _, c := range chain {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		out, err := c.Check(ctx, req, user)
		if err != nil {
			o.logger.Error("outcome check %s: %v", c.Name, err)
			return Outcome{}, err
		}
		if out != nil {
			out.Check = c.Name
			return *out, nil
		}
	}

	if target := req.TakeReturn(); IsLocalPath(target) {
		return Outcome{Location: target, Reason: ReasonReturn}, nil
	}

	location := o.fallback.For(req, user)
	if location == "" {
		location = DefaultDestinationPath
	}
	return Outcome{Location: location, Reason: ReasonDefault}, nil
}

func (o *OutcomeRouter) push(check OutcomeCheck, before string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chain = insertCheck(o.chain, check, before)
}

func insertCheck(chain []OutcomeCheck, check OutcomeCheck, before string) []OutcomeCheck {
	if before != "" {
		for i, c := range chain {
			if c.Name == before {
				out := make([]OutcomeCheck, 0, len(chain)+1)
				out = append(out, chain[:i]...)
				out = append(out, check)
				return append(out, chain[i:]...)
			}
		}
	}
	return append(chain, check)
}

func checkNames(chain []OutcomeCheck) []string {
	out := make([]string, 0, len(chain))
	for _, c := range chain {
		out = append(out, c.Name)
	}
	return out
}
