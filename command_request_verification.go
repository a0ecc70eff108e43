package usersys

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(user *User)
}

func (e RequestVerificationMessage) Type() string { return "account.request_verification" }

type RequestVerificationHandler struct {
	repo     RepositoryManager
	tokens   *TokenManager
	notifier Notifier
	logger   Logger
}

func (h *RequestVerificationHandler) Execute(ctx context.Context, event RequestVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute stays silent about unknown or already verified addresses, the
// response callback only fires when a message went out
func (h *RequestVerificationHandler) execute(ctx context.Context, event RequestVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			h.logger.Debug("verification requested for unknown email %q", event.Email)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
	}

	if user.Verified {
		return nil
	}

	if _, err := h.tokens.LazyGet(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}

	if err := h.notifier.DeliverVerification(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
