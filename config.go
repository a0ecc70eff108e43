package usersys

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	DefaultTokenAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_!~"
	DefaultTokenMinLength      = 30
	DefaultTokenMaxLength      = 50
	DefaultTokenDuration       = 20 * time.Minute
	DefaultSessionDuration     = 14 * 24 * time.Hour
	DefaultMinPassphraseLength = 5
	DefaultDestinationPath     = "/"
	DefaultSessionCookieName   = "usersys_session"
	DefaultReturnToCookieName  = "usersys_return_to"
	DefaultLoginPath           = "/login"
)

// Config holds the account policy and token settings. Every component
// receives it explicitly, there is no package level configuration.
type Config interface {
	GetPublicAccountCreation() bool
	GetEmailIsLogin() bool
	GetVerifyEmailRequired() bool
	GetRequireEmail() bool
	GetAlwaysGenerateToken() bool
	GetTokenAlphabet() string
	GetTokenMinLength() int
	GetTokenMaxLength() int
	GetTokenDuration() time.Duration
	GetMinPassphraseLength() int
	GetDefaultDestination() Destination
	GetSingleSession() bool
	GetSessionDuration() time.Duration
	GetSessionCookieName() string
	GetReturnToCookieName() string
	GetSigningKey() string
}

// Options is the default Config implementation. Zero numeric and string
// fields fall back to the package defaults, use DefaultOptions to get the
// default booleans as well.
type Options struct {
	PublicAccountCreation bool          `mapstructure:"public_account_creation" json:"public_account_creation"`
	EmailIsLogin          bool          `mapstructure:"email_is_login" json:"email_is_login"`
	VerifyEmailRequired   bool          `mapstructure:"verify_email_required" json:"verify_email_required"`
	RequireEmail          bool          `mapstructure:"require_email" json:"require_email"`
	AlwaysGenerateToken   bool          `mapstructure:"always_generate_token" json:"always_generate_token"`
	TokenAlphabet         string        `mapstructure:"token_alphabet" json:"token_alphabet"`
	TokenMinLength        int           `mapstructure:"token_min_length" json:"token_min_length"`
	TokenMaxLength        int           `mapstructure:"token_max_length" json:"token_max_length"`
	TokenDuration         time.Duration `mapstructure:"token_duration" json:"token_duration"`
	MinPassphraseLength   int           `mapstructure:"min_passphrase_length" json:"min_passphrase_length"`
	DefaultDestination    string        `mapstructure:"default_destination" json:"default_destination"`
	SingleSession         bool          `mapstructure:"single_session" json:"single_session"`
	SessionDuration       time.Duration `mapstructure:"session_duration" json:"session_duration"`
	SessionCookieName     string        `mapstructure:"session_cookie_name" json:"session_cookie_name"`
	ReturnToCookieName    string        `mapstructure:"return_to_cookie_name" json:"return_to_cookie_name"`
	SigningKey            string        `mapstructure:"signing_key" json:"-"`

	// DefaultDestinationResolver takes precedence over DefaultDestination
	DefaultDestinationResolver DestinationResolver `mapstructure:"-" json:"-"`
}

var _ Config = Options{}

// DefaultOptions returns the documented defaults
func DefaultOptions() *Options {
	return &Options{
		PublicAccountCreation: true,
		TokenAlphabet:         DefaultTokenAlphabet,
		TokenMinLength:        DefaultTokenMinLength,
		TokenMaxLength:        DefaultTokenMaxLength,
		TokenDuration:         DefaultTokenDuration,
		MinPassphraseLength:   DefaultMinPassphraseLength,
		DefaultDestination:    DefaultDestinationPath,
		SessionDuration:       DefaultSessionDuration,
		SessionCookieName:     DefaultSessionCookieName,
		ReturnToCookieName:    DefaultReturnToCookieName,
	}
}

// Validate will run validation rules
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.TokenMinLength, validation.Min(0)),
		validation.Field(&o.TokenMaxLength, validation.Min(0),
			validation.By(func(any) error {
				if o.GetTokenMaxLength() < o.GetTokenMinLength() {
					return errors.New("must be greater than or equal to token_min_length")
				}
				return nil
			}),
		),
		validation.Field(&o.TokenAlphabet, validation.By(func(any) error {
			if o.TokenAlphabet != "" && len([]rune(o.TokenAlphabet)) < 2 {
				return errors.New("must contain at least two symbols")
			}
			return nil
		})),
		validation.Field(&o.MinPassphraseLength, validation.Min(0)),
		validation.Field(&o.SigningKey, validation.Length(16, 0)),
	)
}

func (o Options) GetPublicAccountCreation() bool { return o.PublicAccountCreation }

func (o Options) GetEmailIsLogin() bool { return o.EmailIsLogin }

func (o Options) GetVerifyEmailRequired() bool { return o.VerifyEmailRequired }

// GetRequireEmail is implied by EmailIsLogin
func (o Options) GetRequireEmail() bool { return o.RequireEmail || o.EmailIsLogin }

func (o Options) GetAlwaysGenerateToken() bool { return o.AlwaysGenerateToken }

func (o Options) GetTokenAlphabet() string {
	if o.TokenAlphabet == "" {
		return DefaultTokenAlphabet
	}
	return o.TokenAlphabet
}

func (o Options) GetTokenMinLength() int {
	if o.TokenMinLength <= 0 {
		return DefaultTokenMinLength
	}
	return o.TokenMinLength
}

func (o Options) GetTokenMaxLength() int {
	if o.TokenMaxLength <= 0 {
		return DefaultTokenMaxLength
	}
	return o.TokenMaxLength
}

func (o Options) GetTokenDuration() time.Duration {
	if o.TokenDuration == 0 {
		return DefaultTokenDuration
	}
	return o.TokenDuration
}

func (o Options) GetMinPassphraseLength() int {
	if o.MinPassphraseLength <= 0 {
		return DefaultMinPassphraseLength
	}
	return o.MinPassphraseLength
}

func (o Options) GetDefaultDestination() Destination {
	if o.DefaultDestinationResolver != nil {
		return Resolve(o.DefaultDestinationResolver)
	}
	if o.DefaultDestination == "" {
		return Path(DefaultDestinationPath)
	}
	return Path(o.DefaultDestination)
}

func (o Options) GetSingleSession() bool { return o.SingleSession }

func (o Options) GetSessionDuration() time.Duration {
	if o.SessionDuration <= 0 {
		return DefaultSessionDuration
	}
	return o.SessionDuration
}

func (o Options) GetSessionCookieName() string {
	if o.SessionCookieName == "" {
		return DefaultSessionCookieName
	}
	return o.SessionCookieName
}

func (o Options) GetReturnToCookieName() string {
	if o.ReturnToCookieName == "" {
		return DefaultReturnToCookieName
	}
	return o.ReturnToCookieName
}

func (o Options) GetSigningKey() string { return o.SigningKey }
