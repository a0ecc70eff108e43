package usersys

import "context"

var requestCtxKey = &contextKey{"usersys_request"}
var userCtxKey = &contextKey{"usersys_user"}

type contextKey struct {
	name string
}

// Request carries the request scoped state the package reads and writes:
// the caller identifier, the current target, the pending return target,
// a one shot notice and the session reference. HTTP adapters load it from
// cookies and persist the changes back once the flow is done.
type Request struct {
	Caller     string
	Target     string
	Method     string
	RemoteAddr string
	UserAgent  string

	SessionID string
	ReturnTo  string
	Notice    string

	initialSessionID string
	initialReturnTo  string

	identity         *User
	identityResolved bool
}

// NewRequest creates a request for the given caller and current target
func NewRequest(caller, target string) *Request {
	return &Request{
		Caller: caller,
		Target: target,
	}
}

// WithSession loads a session reference read from the transport
func (r *Request) WithSession(id string) *Request {
	r.SessionID = id
	r.initialSessionID = id
	return r
}

// WithReturnTo loads a pending return target read from the transport.
// Targets outside this site are dropped and cleared on write.
func (r *Request) WithReturnTo(target string) *Request {
	r.initialReturnTo = target
	if IsLocalPath(target) {
		r.ReturnTo = target
	}
	return r
}

// RememberReturn stores the current target so a later successful login
// sends the user back to it
func (r *Request) RememberReturn() {
	if IsLocalPath(r.Target) {
		r.ReturnTo = r.Target
	}
}

// TakeReturn consumes the pending return target
func (r *Request) TakeReturn() string {
	target := r.ReturnTo
	r.ReturnTo = ""
	return target
}

// Flash sets the one shot notice shown on the next page
func (r *Request) Flash(msg string) {
	r.Notice = msg
}

// SessionChanged reports whether the session reference must be written
// back to the transport
func (r *Request) SessionChanged() bool {
	return r.SessionID != r.initialSessionID
}

// ReturnToChanged reports whether the pending return target must be
// written back to the transport
func (r *Request) ReturnToChanged() bool {
	return r.ReturnTo != r.initialReturnTo
}

// Identity returns the memoized identity, ok is false when it was never
// resolved for this request
func (r *Request) Identity() (user *User, ok bool) {
	return r.identity, r.identityResolved
}

// SetIdentity memoizes the identity for the rest of the request
func (r *Request) SetIdentity(user *User) {
	r.identity = user
	r.identityResolved = true
}

// ClearIdentity drops the session reference and the memoized identity
func (r *Request) ClearIdentity() {
	r.SessionID = ""
	r.identity = nil
	r.identityResolved = true
}

// WithRequest stores req in ctx
func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestCtxKey, req)
}

// RequestFromContext finds the request in ctx
func RequestFromContext(ctx context.Context) (*Request, bool) {
	raw, ok := ctx.Value(requestCtxKey).(*Request)
	return raw, ok
}

// WithUser sets the User in the given context
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the user from the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}
