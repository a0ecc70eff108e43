package usersys

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

const returnToCookieDuration = 5 * time.Minute

// CookieJar is the cookie surface of router.Context used to carry the
// request state between requests
type CookieJar interface {
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *router.Cookie)
}

// HTTPAdapter binds Service flows to go-router handlers. Request state
// travels in two cookies: the signed session envelope and the pending
// return target.
type HTTPAdapter struct {
	service      *Service
	codec        *SessionCodec
	cfg          Config
	secure       bool
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewHTTPAdapter creates an adapter
func NewHTTPAdapter(service *Service, codec *SessionCodec) *HTTPAdapter {
	if service == nil {
		panic("Missing Service in http adapter...")
	}
	if codec == nil {
		panic("Missing SessionCodec in http adapter...")
	}
	a := &HTTPAdapter{
		service: service,
		codec:   codec,
		cfg:     service.Config(),
		secure:  true,
		Logger:  defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// WithLogger sets the logger
func (a *HTTPAdapter) WithLogger(l Logger) *HTTPAdapter {
	a.Logger = normalizeLogger(l)
	return a
}

// WithInsecureCookies drops the Secure cookie flag, for local development
func (a *HTTPAdapter) WithInsecureCookies() *HTTPAdapter {
	a.secure = false
	return a
}

// Service returns the wrapped service
func (a *HTTPAdapter) Service() *Service {
	return a.service
}

// Request builds the request state of c for caller
func (a *HTTPAdapter) Request(c router.Context, caller string) *Request {
	req := a.LoadRequest(c, caller, c.OriginalURL())
	req.Method = c.Method()
	req.UserAgent = c.Header("User-Agent")
	req.RemoteAddr = clientAddr(c)
	return req
}

// clientAddr returns the first forwarded address, the adapters sit behind
// a proxy in every deployment we run
func clientAddr(c router.Context) string {
	if fwd := c.Header("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return c.Header("X-Real-Ip")
}

// LoadRequest reads the session envelope and return target from jar.
// Envelopes that fail to verify, or were issued for another caller, are
// ignored.
func (a *HTTPAdapter) LoadRequest(jar CookieJar, caller, target string) *Request {
	req := NewRequest(caller, target)

	if raw := jar.Cookies(a.cfg.GetSessionCookieName()); raw != "" {
		claims, err := a.codec.Decode(raw)
		if err == nil && (claims.Caller == "" || claims.Caller == caller) {
			req.WithSession(claims.Subject)
		} else {
			// force the stale cookie to be cleared on write
			req.initialSessionID = raw
		}
	}

	if target := jar.Cookies(a.cfg.GetReturnToCookieName()); target != "" {
		req.WithReturnTo(target)
	}

	return req
}

// PersistRequest writes the request state changes back to jar
func (a *HTTPAdapter) PersistRequest(jar CookieJar, req *Request) error {
	if req.SessionChanged() {
		if req.SessionID == "" {
			a.cookieDel(jar, a.cfg.GetSessionCookieName())
		} else {
			envelope, err := a.codec.Encode(req.SessionID, req.Caller)
			if err != nil {
				return err
			}
			a.setCookie(jar, a.cfg.GetSessionCookieName(), envelope, a.codec.TTL())
		}
	}

	if req.ReturnToChanged() {
		if req.ReturnTo == "" {
			a.cookieDel(jar, a.cfg.GetReturnToCookieName())
		} else {
			a.setCookie(jar, a.cfg.GetReturnToCookieName(), req.ReturnTo, returnToCookieDuration)
		}
	}

	return nil
}

// WriteOutcome persists req and redirects to the outcome location, the
// notice travels as a flash message
func (a *HTTPAdapter) WriteOutcome(c router.Context, req *Request, out Outcome) error {
	if err := a.PersistRequest(c, req); err != nil {
		return a.ErrorHandler(c, err)
	}

	notice := out.Notice
	if notice == "" {
		notice = req.Notice
	}

	status := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		status = http.StatusFound
	}

	if notice == "" {
		return c.Redirect(out.Location, status)
	}

	data := router.ViewContext{
		"system_message": notice,
		"reason":         string(out.Reason),
	}
	switch out.Reason {
	case ReasonDefault, ReasonReturn, ReasonNotificationSent, ReasonLoggedOut:
		return flash.WithSuccess(c, data).Redirect(out.Location, status)
	default:
		return flash.WithError(c, data).Redirect(out.Location, status)
	}
}

// Protect returns a middleware requiring an authenticated identity of
// caller, optionally restricted to the allowed logins
func (a *HTTPAdapter) Protect(caller string, allow ...string) router.MiddlewareFunc {
	allowed := AllowLogins(allow...)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := a.Request(c, caller)

			decision, err := a.service.Gate().RequireLoginAs(c.Context(), req, allowed)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			if !decision.Allowed {
				a.Logger.Info("access denied for %s: %s", req.Target, decision.Outcome.Reason)
				return a.WriteOutcome(c, req, decision.Outcome)
			}

			if err := a.PersistRequest(c, req); err != nil {
				return a.ErrorHandler(c, err)
			}

			ctx := WithUser(WithRequest(c.Context(), req), decision.User)
			c.SetContext(ctx)
			c.Locals(userLocalsKey, decision.User)

			return next(c)
		}
	}
}

const userLocalsKey = "usersys_user"

// CurrentUser returns the identity set by Protect
func CurrentUser(c router.Context) (*User, bool) {
	if user, ok := UserFromContext(c.Context()); ok {
		return user, true
	}
	user, ok := c.Locals(userLocalsKey).(*User)
	return user, ok && user != nil
}

func (a *HTTPAdapter) setCookie(jar CookieJar, name, val string, duration time.Duration) {
	jar.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: "Lax",
	})
}

func (a *HTTPAdapter) cookieDel(jar CookieJar, name string) {
	jar.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: "Lax",
	})
}

func (a *HTTPAdapter) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(http.StatusInternalServerError)
	}

	a.Logger.Error(
		"usersys handler error: %s category=%s text_code=%s details=%s",
		richErr.Message,
		richErr.Category,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return c.JSON(code, router.ViewContext{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
