package usersys

import "strings"

// DestinationResolver computes a redirect location for a request and the
// identity involved, user may be nil
type DestinationResolver func(req *Request, user *User) string

// Destination is either a literal path or a resolver invoked per request.
// Literal paths may reference ":id" and ":login" which are replaced with
// the identity's values.
type Destination struct {
	Path     string
	Resolver DestinationResolver
}

// Path returns a literal destination
func Path(p string) Destination {
	return Destination{Path: p}
}

// Resolve returns a destination computed per request
func Resolve(fn DestinationResolver) Destination {
	return Destination{Resolver: fn}
}

// IsZero reports whether no destination was configured
func (d Destination) IsZero() bool {
	return d.Path == "" && d.Resolver == nil
}

// For returns the concrete location
func (d Destination) For(req *Request, user *User) string {
	if d.Resolver != nil {
		return d.Resolver(req, user)
	}
	return expandPath(d.Path, user)
}

func expandPath(p string, user *User) string {
	if user == nil || !strings.Contains(p, ":") {
		return p
	}
	return strings.NewReplacer(
		":id", user.ID.String(),
		":login", user.LowercaseLogin,
	).Replace(p)
}

// IsLocalPath reports whether p is a path on this site. Scheme relative
// ("//host") and backslash ("/\\host") forms are rejected, browsers
// resolve both to another host.
func IsLocalPath(p string) bool {
	if len(p) == 0 || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
