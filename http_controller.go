package usersys

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterRoutes mounts the account routes on app
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName(controller.routeName("login.post"))

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName(controller.routeName("logout.post"))

	app.Post(controller.Routes.Users, controller.AccountCreate).
		SetName(controller.routeName("users.post"))

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Verify), controller.Verify).
		SetName(controller.routeName("verify.get"))

	app.Post(controller.Routes.RequestVerification, controller.RequestVerification).
		SetName(controller.routeName("request-verification.post"))

	app.Post(controller.Routes.Recovery, controller.RecoveryPost).
		SetName(controller.routeName("recovery.post"))

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Recovery), controller.RecoveryPerform).
		SetName(controller.routeName("recovery-perform.get"))

	app.Post(controller.Routes.Passphrase, controller.Adapter.Protect(controller.Caller)(controller.PassphraseUpdate)).
		SetName(controller.routeName("passphrase.post"))

	return controller
}

func (a *Controller) routeName(name string) string {
	if a.Caller == "" {
		return "usersys." + name
	}
	return fmt.Sprintf("usersys.%s.%s", a.Caller, name)
}

type ControllerRoutes struct {
	Login               string
	Logout              string
	Users               string
	Verify              string
	RequestVerification string
	Recovery            string
	Passphrase          string
}

// Controller serves the account routes for one caller
type Controller struct {
	Debug   bool
	Caller  string
	Logger  Logger
	Routes  *ControllerRoutes
	Adapter *HTTPAdapter
}

type ControllerOption func(*Controller) *Controller

// WithControllerAdapter sets the HTTP adapter, required
func WithControllerAdapter(a *HTTPAdapter) ControllerOption {
	return func(c *Controller) *Controller {
		c.Adapter = a
		return c
	}
}

// WithControllerCaller sets the caller the routes act for
func WithControllerCaller(caller string) ControllerOption {
	return func(c *Controller) *Controller {
		c.Caller = caller
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithControllerDebug dumps payloads through the logger
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Login:               "/login",
			Logout:              "/logout",
			Users:               "/users",
			Verify:              "/users/verify",
			RequestVerification: "/users/request-verification",
			Recovery:            "/users/recovery",
			Passphrase:          "/users/passphrase",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Adapter == nil {
		panic("Missing HTTPAdapter in usersys controller...")
	}

	return c
}

// LoginPayload is the login form
type LoginPayload struct {
	Login      string `form:"login" json:"login"`
	Passphrase string `form:"passphrase" json:"passphrase"`
	Token      string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Length(0, 255)),
		validation.Field(&r.Passphrase, validation.Length(0, 1024)),
	)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)
	req := a.Adapter.Request(ctx, a.Caller)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.Adapter.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, req, a.Adapter.service.Callers().LoginURL(a.Caller, req), err)
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(LoginPayload{Login: payload.Login}))
	}

	out, err := a.Adapter.service.Login(ctx.Context(), req, Credentials{
		Login:      payload.Login,
		Passphrase: payload.Passphrase,
		Token:      payload.Token,
	})
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) LogoutPost(ctx router.Context) error {
	req := a.Adapter.Request(ctx, a.Caller)

	out, err := a.Adapter.service.Logout(ctx.Context(), req)
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) AccountCreate(ctx router.Context) error {
	payload := new(AccountInput)
	req := a.Adapter.Request(ctx, a.Caller)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("account create parse payload: %v", err)
		return a.Adapter.ErrorHandler(ctx, err)
	}

	_, out, err := a.Adapter.service.CreateAccount(ctx.Context(), req, *payload)
	if err != nil {
		if hasTextCode(err, TextCodeAccountCreationOff) {
			return a.Adapter.WriteOutcome(ctx, req, Outcome{
				Location: a.Adapter.service.Callers().LoginURL(a.Caller, req),
				Reason:   ReasonNotAllowed,
				Notice:   ErrAccountCreationDisabled.Message,
			})
		}
		if IsValidationError(err) {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  err.Error(),
				"system_message": out.Notice,
				"validation":     ValidationErrors(err),
				"record": router.ViewContext{
					"login":    payload.Login,
					"email":    payload.Email,
					"nickname": payload.Nickname,
				},
			}).Redirect(out.Location, http.StatusSeeOther)
		}
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) Verify(ctx router.Context) error {
	req := a.Adapter.Request(ctx, a.Caller)

	out, err := a.Adapter.service.Verify(ctx.Context(), req, ctx.Param("token"))
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

// EmailPayload carries the address for verification and recovery requests
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *Controller) RequestVerification(ctx router.Context) error {
	payload := new(EmailPayload)
	req := a.Adapter.Request(ctx, a.Caller)

	if err := ctx.Bind(payload); err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, req, a.Adapter.service.Callers().LoginURL(a.Caller, req), err)
	}

	out, err := a.Adapter.service.RequestVerification(ctx.Context(), req, payload.Email)
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) RecoveryPost(ctx router.Context) error {
	payload := new(EmailPayload)
	req := a.Adapter.Request(ctx, a.Caller)

	if err := ctx.Bind(payload); err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, req, a.Adapter.service.dests.Recovery.For(req, nil), err)
	}

	out, err := a.Adapter.service.SendRecovery(ctx.Context(), req, payload.Email)
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) RecoveryPerform(ctx router.Context) error {
	req := a.Adapter.Request(ctx, a.Caller)

	out, err := a.Adapter.service.PerformRecovery(ctx.Context(), req, ctx.Param("token"))
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

// PassphrasePayload is the passphrase change form
type PassphrasePayload struct {
	Passphrase             string `form:"passphrase" json:"passphrase"`
	PassphraseConfirmation string `form:"passphrase_confirmation" json:"passphrase_confirmation"`
}

func (a *Controller) PassphraseUpdate(ctx router.Context) error {
	payload := new(PassphrasePayload)
	req := a.Adapter.Request(ctx, a.Caller)

	user, ok := CurrentUser(ctx)
	if !ok {
		return a.Adapter.ErrorHandler(ctx, ErrAccessDenied)
	}

	if err := ctx.Bind(payload); err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	location := a.Adapter.service.dests.ResetPassphrase.For(req, user)
	if err := a.Adapter.service.ChangePassphrase(ctx.Context(), user, payload.Passphrase, payload.PassphraseConfirmation); err != nil {
		if IsValidationError(err) {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  err.Error(),
				"system_message": NoticeAccountInvalid,
				"validation":     ValidationErrors(err),
			}).Redirect(location, http.StatusSeeOther)
		}
		return a.Adapter.ErrorHandler(ctx, err)
	}

	out, err := a.Adapter.service.Router(a.Caller).Route(ctx.Context(), req, user)
	if err != nil {
		return a.Adapter.ErrorHandler(ctx, err)
	}

	return a.Adapter.WriteOutcome(ctx, req, out)
}

func (a *Controller) invalid(ctx router.Context, req *Request, location string, err error) error {
	a.Logger.Info("invalid payload for %s: %v", req.Target, err)
	return flash.WithError(ctx, router.ViewContext{
		"error_message":  err.Error(),
		"system_message": "Error validating payload",
		"validation":     FormatValidationErrorToMap(err),
	}).Redirect(location, http.StatusSeeOther)
}
