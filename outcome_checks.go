package usersys

import "context"

const (
	CheckVerifyEmail     = "verify_email"
	CheckInformDisabled  = "inform_disabled"
	CheckResetPassphrase = "reset_passphrase"
)

const (
	NoticeVerificationRequired = "Please verify your email address before you continue."
	NoticeAccountDisabled      = "Your account is disabled."
	NoticeResetPassphrase      = "Please choose a new passphrase."
	NoticeLoginRequired        = "You need to login to proceed."
)

// Destinations are the pages built in checks and the gate send users to
type Destinations struct {
	VerificationRequest Destination
	DisabledNotice      Destination
	ResetPassphrase     Destination
	Recovery            Destination
	Registration        Destination
}

// DefaultDestinations returns the default page locations
func DefaultDestinations() Destinations {
	return Destinations{
		VerificationRequest: Path("/users/:id/request-verification"),
		DisabledNotice:      Path("/users/:id/disabled"),
		ResetPassphrase:     Path("/users/:id/edit"),
		Recovery:            Path("/users/recovery"),
		Registration:        Path("/users/new"),
	}
}

func (d Destinations) withDefaults() Destinations {
	def := DefaultDestinations()
	if d.VerificationRequest.IsZero() {
		d.VerificationRequest = def.VerificationRequest
	}
	if d.DisabledNotice.IsZero() {
		d.DisabledNotice = def.DisabledNotice
	}
	if d.ResetPassphrase.IsZero() {
		d.ResetPassphrase = def.ResetPassphrase
	}
	if d.Recovery.IsZero() {
		d.Recovery = def.Recovery
	}
	if d.Registration.IsZero() {
		d.Registration = def.Registration
	}
	return d
}

// VerifyEmailCheck redirects unverified identities when verification is
// required
func VerifyEmailCheck(cfg Config, dest Destination) OutcomeCheck {
	return OutcomeCheck{
		Name: CheckVerifyEmail,
		Check: func(ctx context.Context, req *Request, user *User) (*Outcome, error) {
			if cfg.GetVerifyEmailRequired() && !user.Verified {
				return Redirect(dest.For(req, user), ReasonUnverified, NoticeVerificationRequired), nil
			}
			return nil, nil
		},
	}
}

// InformDisabledCheck redirects identities disabled right now
func InformDisabledCheck(disabled DisabledChecker, dest Destination) OutcomeCheck {
	return OutcomeCheck{
		Name: CheckInformDisabled,
		Check: func(ctx context.Context, req *Request, user *User) (*Outcome, error) {
			off, err := disabled.IsDisabled(ctx, user)
			if err != nil {
				return nil, err
			}
			if off {
				return Redirect(dest.For(req, user), ReasonDisabled, NoticeAccountDisabled), nil
			}
			return nil, nil
		},
	}
}

// ResetPassphraseCheck redirects identities flagged for a passphrase reset
func ResetPassphraseCheck(dest Destination) OutcomeCheck {
	return OutcomeCheck{
		Name: CheckResetPassphrase,
		Check: func(ctx context.Context, req *Request, user *User) (*Outcome, error) {
			if user.ResetPassphrase {
				return Redirect(dest.For(req, user), ReasonResetPassphrase, NoticeResetPassphrase), nil
			}
			return nil, nil
		},
	}
}

// DefaultOutcomeChecks returns the built in checks in their default order:
// verification, disablement, passphrase reset. Applications may reorder
// the slice before seeding a registry.
func DefaultOutcomeChecks(cfg Config, disabled DisabledChecker, dests Destinations) []OutcomeCheck {
	dests = dests.withDefaults()
	return []OutcomeCheck{
		VerifyEmailCheck(cfg, dests.VerificationRequest),
		InformDisabledCheck(disabled, dests.DisabledNotice),
		ResetPassphraseCheck(dests.ResetPassphrase),
	}
}
