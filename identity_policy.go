package usersys

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// UniquenessChecker answers the uniqueness questions asked while
// validating an account, except excludes the record being validated
type UniquenessChecker interface {
	LoginTaken(ctx context.Context, lowercaseLogin string, except uuid.UUID) (bool, error)
	EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error)
	SecurityTokenTaken(ctx context.Context, token string, except uuid.UUID) (bool, error)
}

var errTaken = errors.New("has already been taken")

// AccountInput holds the attributes accepted on sign up
type AccountInput struct {
	Login                  string `form:"login" json:"login"`
	Email                  string `form:"email" json:"email"`
	Nickname               string `form:"nickname" json:"nickname"`
	Passphrase             string `form:"passphrase" json:"passphrase"`
	PassphraseConfirmation string `form:"passphrase_confirmation" json:"passphrase_confirmation"`
}

// IdentityPolicy applies the configured account rules to User records
type IdentityPolicy struct {
	cfg    Config
	hasher PassphraseHasher
}

// NewIdentityPolicy creates a policy, a nil hasher means bcrypt
func NewIdentityPolicy(cfg Config, hasher PassphraseHasher) *IdentityPolicy {
	if cfg == nil {
		cfg = DefaultOptions()
	}
	return &IdentityPolicy{
		cfg:    cfg,
		hasher: normalizeHasher(hasher),
	}
}

// Hasher returns the passphrase hasher in use
func (p *IdentityPolicy) Hasher() PassphraseHasher {
	return p.hasher
}

// Assign copies input into u
func (p *IdentityPolicy) Assign(u *User, input AccountInput) error {
	p.SetLogin(u, input.Login)
	if !p.cfg.GetEmailIsLogin() {
		p.SetEmail(u, input.Email)
	}
	u.Nickname = input.Nickname

	if err := p.SetPassphrase(u, input.Passphrase); err != nil {
		return err
	}
	if input.PassphraseConfirmation != "" || input.Passphrase != "" {
		p.SetPassphraseConfirmation(u, input.PassphraseConfirmation)
	}
	return nil
}

// SetLogin assigns the login. Persisted logins only accept a change of
// case, anything else is ignored.
func (p *IdentityPolicy) SetLogin(u *User, login string) {
	if u.IsPersisted() && NormalizeLogin(login) != NormalizeLogin(u.Login) {
		return
	}
	u.Login = login
	u.LowercaseLogin = NormalizeLogin(login)
	if p.cfg.GetEmailIsLogin() {
		u.Email = login
	}
}

// SetEmail assigns the email. When the email is the login it follows the
// login rules. Changing the address of a persisted record requires a new
// verification when verification is enabled.
func (p *IdentityPolicy) SetEmail(u *User, email string) {
	if p.cfg.GetEmailIsLogin() {
		p.SetLogin(u, email)
		return
	}
	if u.IsPersisted() && email != u.Email && p.cfg.GetVerifyEmailRequired() {
		u.Verified = false
	}
	u.Email = email
}

// SetPassphrase hashes and stores plain, a blank passphrase leaves the
// current hash untouched
func (p *IdentityPolicy) SetPassphrase(u *User, plain string) error {
	if plain == "" {
		return nil
	}

	hash, err := p.hasher.HashPassphrase(plain)
	if err != nil {
		return err
	}

	u.PassphraseHash = hash
	u.passphraseAssigned = true
	u.passphraseLength = utf8.RuneCountInString(plain)
	u.confirmationAssigned = false
	u.confirmationMismatch = false
	return nil
}

// SetPassphraseConfirmation compares plain against the passphrase assigned
// through SetPassphrase, the result is checked by Validate
func (p *IdentityPolicy) SetPassphraseConfirmation(u *User, plain string) {
	u.confirmationAssigned = true
	if !u.passphraseAssigned {
		u.confirmationMismatch = true
		return
	}
	u.confirmationMismatch = p.hasher.ComparePassphrase(plain, u.PassphraseHash) != nil
}

// PrepareCreate sets the defaults of a record about to be created
func (p *IdentityPolicy) PrepareCreate(u *User) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Verified = !p.cfg.GetVerifyEmailRequired()
	u.LowercaseLogin = NormalizeLogin(u.Login)
}

// NeedsSecurityToken reports whether a token must be issued on create
func (p *IdentityPolicy) NeedsSecurityToken(u *User) bool {
	return p.cfg.GetAlwaysGenerateToken() || (p.cfg.GetVerifyEmailRequired() && !u.Verified)
}

// Validate checks u against the policy. Errors are reported per field
// through ValidationErrors.
func (p *IdentityPolicy) Validate(ctx context.Context, u *User, uniq UniquenessChecker) error {
	fields := map[string]string{}
	add := func(field string, err error) {
		if err != nil {
			if _, ok := fields[field]; !ok {
				fields[field] = err.Error()
			}
		}
	}

	loginRules := []validation.Rule{validation.Required, validation.Length(1, 255)}
	if p.cfg.GetEmailIsLogin() {
		loginRules = append(loginRules, is.Email)
	}
	add("login", validation.Validate(u.Login, loginRules...))

	emailRules := []validation.Rule{validation.Length(0, 255), is.Email}
	if p.cfg.GetRequireEmail() || p.cfg.GetVerifyEmailRequired() {
		emailRules = append([]validation.Rule{validation.Required}, emailRules...)
	}
	add("email", validation.Validate(u.Email, emailRules...))

	if !u.IsPersisted() && u.PassphraseHash == "" {
		add("passphrase", validation.Validate(u.PassphraseHash, validation.Required))
	}
	if u.passphraseAssigned && u.passphraseLength < p.cfg.GetMinPassphraseLength() {
		add("passphrase", fmt.Errorf("is too short (minimum is %d characters)", p.cfg.GetMinPassphraseLength()))
	}
	if u.confirmationAssigned && u.confirmationMismatch {
		add("passphrase_confirmation", errors.New("doesn't match passphrase"))
	}

	if uniq != nil {
		if u.Login != "" {
			taken, err := uniq.LoginTaken(ctx, NormalizeLogin(u.Login), u.ID)
			if err != nil {
				return err
			}
			if taken {
				add("login", errTaken)
			}
		}

		if u.Email != "" && !p.cfg.GetEmailIsLogin() {
			taken, err := uniq.EmailTaken(ctx, u.Email, u.ID)
			if err != nil {
				return err
			}
			if taken {
				add("email", errTaken)
			}
		}

		if u.SecurityToken != "" {
			taken, err := uniq.SecurityTokenTaken(ctx, u.SecurityToken, u.ID)
			if err != nil {
				return err
			}
			if taken {
				add("security_token", errTaken)
			}
		}
	}

	if len(fields) > 0 {
		return newValidationError(fields)
	}
	return nil
}
