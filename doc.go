// Package usersys provides account lifecycle building blocks for web
// applications: pluggable login strategies, per-caller configuration with
// inheritance, an access gate for protected routes, a post-authentication
// outcome router, time-bounded disablement and expiring security tokens.
//
// Callers:
//   - A caller is a named consumer of the package (a controller, an API
//     surface). CallerRegistry resolves its strategy, identity source,
//     session store and redirect destinations by walking the caller's
//     parent chain, falling back to package defaults.
//
// Strategies:
//   - Strategy turns credentials into an identity or "no match". Password,
//     token and chained strategies are bundled; SSOStrategy adapts remote
//     verifiers and WithTimeout bounds slow ones. A strategy transport
//     failure is reported with IsTransportError so hosts can tell it apart
//     from bad credentials.
//
// Outcomes:
//   - After login, verification or recovery the OutcomeRouter walks an
//     ordered chain of checks published by an OutcomeRegistry. The first
//     check that yields a destination wins, otherwise the pending return
//     target, otherwise the caller default. Addons contribute checks through
//     OutcomeAddon without the router knowing about them.
//
// Disablement:
//   - DisabledPeriod rows are never edited in place. An item is disabled at
//     time t when any of its periods covers t. ScopeActiveAt and
//     ScopeDisabledAt express the same predicate as query scopes.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events (login, logout, account
//     creation, verification, recovery, disablement). Errors are logged and
//     never block the flow that emitted them.
package usersys
