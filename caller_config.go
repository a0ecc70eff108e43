package usersys

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ConfigKey names a caller setting
type ConfigKey string

const (
	KeyAuthStrategy       ConfigKey = "auth_strategy"
	KeyIdentityModel      ConfigKey = "identity_model"
	KeySessionModel       ConfigKey = "session_model"
	KeyLoginURL           ConfigKey = "login_url"
	KeyLoginPostURL       ConfigKey = "login_post_url"
	KeyDefaultDestination ConfigKey = "default_destination"
)

// IdentitySource loads identities for a caller. FindIdentity returns nil,
// nil when the identity does not exist.
type IdentitySource interface {
	FindIdentity(ctx context.Context, id uuid.UUID) (*User, error)
	AuthenticationScope() []Scope
}

// CallerConfig holds the settings a caller may override. Unset fields are
// inherited from the parent caller, then from the registry defaults.
type CallerConfig struct {
	Strategy           Strategy
	Identities         IdentitySource
	Sessions           SessionStore
	LoginURL           Destination
	LoginPostURL       Destination
	DefaultDestination Destination
}

func (c CallerConfig) lookup(key ConfigKey) (any, bool) {
	switch key {
	case KeyAuthStrategy:
		return c.Strategy, c.Strategy != nil
	case KeyIdentityModel:
		return c.Identities, c.Identities != nil
	case KeySessionModel:
		return c.Sessions, c.Sessions != nil
	case KeyLoginURL:
		return c.LoginURL, !c.LoginURL.IsZero()
	case KeyLoginPostURL:
		return c.LoginPostURL, !c.LoginPostURL.IsZero()
	case KeyDefaultDestination:
		return c.DefaultDestination, !c.DefaultDestination.IsZero()
	}
	return nil, false
}

type callerNode struct {
	name   string
	parent string
	cfg    CallerConfig
}

// CallerRegistry resolves caller settings through their inheritance chain.
// Settings are read on every lookup so runtime overrides are visible to
// descendants right away.
type CallerRegistry struct {
	mu       sync.RWMutex
	defaults CallerConfig
	callers  map[string]*callerNode
}

// NewCallerRegistry creates a registry with the given package defaults.
// Login URLs default to DefaultLoginPath.
func NewCallerRegistry(defaults CallerConfig) *CallerRegistry {
	if defaults.LoginURL.IsZero() {
		defaults.LoginURL = Path(DefaultLoginPath)
	}
	if defaults.LoginPostURL.IsZero() {
		defaults.LoginPostURL = Path(DefaultLoginPath)
	}
	return &CallerRegistry{
		defaults: defaults,
		callers:  map[string]*callerNode{},
	}
}

// Register declares a caller, parent is optional and must already exist.
// Registering an existing name replaces its settings and parent.
func (r *CallerRegistry) Register(name string, cfg CallerConfig, parent ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := &callerNode{name: name, cfg: cfg}
	if len(parent) > 0 && parent[0] != "" {
		p := parent[0]
		if _, ok := r.callers[p]; !ok || p == name {
			return ErrUnknownCaller.Clone().WithMetadata(map[string]any{
				"caller": name,
				"parent": p,
			})
		}
		if r.descendsFrom(p, name) {
			return ErrUnknownCaller.Clone().WithMetadata(map[string]any{
				"caller": name,
				"parent": p,
				"cycle":  true,
			})
		}
		node.parent = p
	}

	r.callers[name] = node
	return nil
}

// Configure updates the settings of a registered caller in place. Passing
// an empty name updates the defaults.
func (r *CallerRegistry) Configure(name string, fn func(*CallerConfig)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		fn(&r.defaults)
		return nil
	}

	node, ok := r.callers[name]
	if !ok {
		return ErrUnknownCaller.Clone().WithMetadata(map[string]any{
			"caller": name,
		})
	}
	fn(&node.cfg)
	return nil
}

// Has reports whether name was registered
func (r *CallerRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.callers[name]
	return ok
}

// Chain returns the caller names from the most specific to the root
func (r *CallerRegistry) Chain(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for _, n := range r.chain(name) {
		out = append(out, n.name)
	}
	return out
}

// Resolve returns the value of key for caller, walking the parent chain
// and falling back to the defaults. Unknown callers resolve against the
// defaults only.
func (r *CallerRegistry) Resolve(caller string, key ConfigKey) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.chain(caller) {
		if v, ok := n.cfg.lookup(key); ok {
			return v, true
		}
	}
	return r.defaults.lookup(key)
}

// Strategy returns the strategy of caller
func (r *CallerRegistry) Strategy(caller string) (Strategy, error) {
	v, ok := r.Resolve(caller, KeyAuthStrategy)
	if !ok {
		return nil, r.notConfigured(caller, KeyAuthStrategy)
	}
	return v.(Strategy), nil
}

// Identities returns the identity source of caller
func (r *CallerRegistry) Identities(caller string) (IdentitySource, error) {
	v, ok := r.Resolve(caller, KeyIdentityModel)
	if !ok {
		return nil, r.notConfigured(caller, KeyIdentityModel)
	}
	return v.(IdentitySource), nil
}

// Sessions returns the session store of caller
func (r *CallerRegistry) Sessions(caller string) (SessionStore, error) {
	v, ok := r.Resolve(caller, KeySessionModel)
	if !ok {
		return nil, r.notConfigured(caller, KeySessionModel)
	}
	return v.(SessionStore), nil
}

// LoginURL returns the login page location of caller
func (r *CallerRegistry) LoginURL(caller string, req *Request) string {
	return r.destination(caller, KeyLoginURL).For(req, nil)
}

// LoginPostURL returns the login form action of caller
func (r *CallerRegistry) LoginPostURL(caller string, req *Request) string {
	return r.destination(caller, KeyLoginPostURL).For(req, nil)
}

// DefaultDestination returns the post login destination of caller, the
// zero Destination when none is configured
func (r *CallerRegistry) DefaultDestination(caller string) Destination {
	return r.destination(caller, KeyDefaultDestination)
}

func (r *CallerRegistry) destination(caller string, key ConfigKey) Destination {
	v, ok := r.Resolve(caller, key)
	if !ok {
		return Destination{}
	}
	return v.(Destination)
}

// chain must be called with the lock held
func (r *CallerRegistry) chain(name string) []*callerNode {
	out := []*callerNode{}
	seen := map[string]bool{}
	for name != "" && !seen[name] {
		node, ok := r.callers[name]
		if !ok {
			break
		}
		seen[name] = true
		out = append(out, node)
		name = node.parent
	}
	return out
}

// descendsFrom reports whether name has ancestor in its chain, lock held
func (r *CallerRegistry) descendsFrom(name, ancestor string) bool {
	for _, n := range r.chain(name) {
		if n.name == ancestor {
			return true
		}
	}
	return false
}

func (r *CallerRegistry) notConfigured(caller string, key ConfigKey) error {
	return ErrNotConfigured.Clone().WithMetadata(map[string]any{
		"caller": caller,
		"key":    string(key),
	})
}
