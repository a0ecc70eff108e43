package usersys

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthenticationFailed   = "AUTHENTICATION_FAILED"
	TextCodeAccessDenied           = "ACCESS_DENIED"
	TextCodeNotConfigured          = "USERSYS_NOT_CONFIGURED"
	TextCodeInvalidToken           = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeValidation             = "VALIDATION_FAILED"
	TextCodeStrategyTransport      = "STRATEGY_TRANSPORT_FAILURE"
	TextCodeAccountCreationOff     = "ACCOUNT_CREATION_DISABLED"
	TextCodeEmptyPassphrase        = "EMPTY_PASSPHRASE"
	TextCodeUnknownCaller          = "UNKNOWN_CALLER"
	TextCodeDuplicateOutcomeCheck  = "DUPLICATE_OUTCOME_CHECK"
	TextCodeInvalidSessionEnvelope = "INVALID_SESSION_ENVELOPE"
)

// ErrAuthenticationFailed is returned when no strategy produced an identity
var ErrAuthenticationFailed = goerrors.New("unable to login, ensure your login and passphrase are correct", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(http.StatusUnauthorized)

// ErrAccessDenied is returned when the gate rejects an identity
var ErrAccessDenied = goerrors.New("access denied", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccessDenied).
	WithCode(http.StatusForbidden)

// ErrNotConfigured is returned when a caller has no strategy, identity
// source or session store anywhere in its inheritance chain
var ErrNotConfigured = goerrors.New("usersys is not configured for caller", goerrors.CategoryInternal).
	WithTextCode(TextCodeNotConfigured).
	WithCode(http.StatusInternalServerError)

// ErrInvalidToken is returned to users following a stale verification or
// recovery link
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeNotFound)

// ErrValidation wraps account validation failures, see ValidationErrors
var ErrValidation = goerrors.New("account validation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrStrategyTransport marks a strategy that could not reach its backend
var ErrStrategyTransport = goerrors.New("authentication service unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeStrategyTransport).
	WithCode(http.StatusBadGateway)

// ErrAccountCreationDisabled is returned when public sign ups are off
var ErrAccountCreationDisabled = goerrors.New("account creation is disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountCreationOff).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty passphrase
var ErrNoEmptyString = goerrors.New("passphrase can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassphrase).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknownCaller is returned when a caller declares a parent that was
// never registered
var ErrUnknownCaller = goerrors.New("unknown caller", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnknownCaller).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateOutcomeCheck is returned when a check name is registered twice
var ErrDuplicateOutcomeCheck = goerrors.New("outcome check already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateOutcomeCheck).
	WithCode(goerrors.CodeConflict)

// ErrInvalidSessionEnvelope is returned when a session cookie fails to decode
var ErrInvalidSessionEnvelope = goerrors.New("unable to decode session cookie", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSessionEnvelope).
	WithCode(http.StatusUnauthorized)

// NewTransportError wraps err as a strategy transport failure
func NewTransportError(strategy string, err error) error {
	if err == nil {
		err = context.DeadlineExceeded
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, "authentication service unavailable").
		WithTextCode(TextCodeStrategyTransport).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{
			"strategy": strategy,
		})
}

// IsTransportError reports whether err, or any error it wraps, is a
// strategy transport failure
func IsTransportError(err error) bool {
	return hasTextCode(err, TextCodeStrategyTransport)
}

// IsValidationError reports whether err is an account validation failure
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// ValidationErrors returns the per field messages carried by a validation
// failure, or nil
func ValidationErrors(err error) map[string]string {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr.TextCode != TextCodeValidation {
		return nil
	}

	fields, ok := richErr.Metadata["fields"].(map[string]string)
	if !ok {
		return nil
	}
	return fields
}

func newValidationError(fields map[string]string) error {
	return goerrors.New(ErrValidation.Message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": fields,
		})
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.TextCode == code {
		return true
	}

	// errors.As stops at the first match, joined errors need a full walk
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if hasTextCode(e, code) {
				return true
			}
		}
	}
	return false
}
