package usersys

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RecoveryRequestMessage struct {
	Email      string `json:"email"`
	OnResponse func(user *User)
}

func (e RecoveryRequestMessage) Type() string { return "account.recovery_request" }

type RecoveryRequestHandler struct {
	repo     RepositoryManager
	tokens   *TokenManager
	notifier Notifier
	logger   Logger
}

func (h *RecoveryRequestHandler) Execute(ctx context.Context, event RecoveryRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recovery request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecoveryRequestHandler) execute(ctx context.Context, event RecoveryRequestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			h.logger.Debug("recovery requested for unknown email %q", event.Email)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for recovery")
	}

	// a recovery link always carries a fresh token with the default lifetime
	if _, err := h.tokens.Issue(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue recovery token")
	}

	if err := h.notifier.DeliverRecovery(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver recovery")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
