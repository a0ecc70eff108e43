package usersys

// OutcomeReason explains why a flow ended at a location
type OutcomeReason string

const (
	ReasonDefault              OutcomeReason = "default"
	ReasonReturn               OutcomeReason = "return"
	ReasonUnverified           OutcomeReason = "unverified"
	ReasonDisabled             OutcomeReason = "disabled"
	ReasonResetPassphrase      OutcomeReason = "reset_passphrase"
	ReasonLoginRequired        OutcomeReason = "login_required"
	ReasonNotAllowed           OutcomeReason = "not_allowed"
	ReasonAuthenticationFailed OutcomeReason = "authentication_failed"
	ReasonStrategyUnavailable  OutcomeReason = "strategy_unavailable"
	ReasonLoggedOut            OutcomeReason = "logged_out"
	ReasonInvalidToken         OutcomeReason = "invalid_token"
	ReasonNotificationSent     OutcomeReason = "notification_sent"
	ReasonValidationFailed     OutcomeReason = "validation_failed"
)

// Outcome is where a flow sends the user next. Every flow ends in a
// redirect, Notice is the one shot message to show there.
type Outcome struct {
	Location string
	Reason   OutcomeReason
	Check    string
	Notice   string
}

// Redirect builds an outcome
func Redirect(location string, reason OutcomeReason, notice ...string) *Outcome {
	out := &Outcome{Location: location, Reason: reason}
	if len(notice) > 0 {
		out.Notice = notice[0]
	}
	return out
}

// Decision is the verdict of the access gate. When Allowed is false the
// Outcome says where to send the user.
type Decision struct {
	Allowed bool
	User    *User
	Outcome Outcome
}
