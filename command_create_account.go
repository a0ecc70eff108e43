package usersys

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type CreateAccountMessage struct {
	AccountInput
	UseHashid  bool
	OnResponse func(user *User)
}

func (e CreateAccountMessage) Type() string { return "account.create" }

type CreateAccountHandler struct {
	repo     RepositoryManager
	policy   *IdentityPolicy
	tokens   *TokenManager
	notifier Notifier
	cfg      Config
	logger   Logger
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{}
	if err := h.policy.Assign(user, event.AccountInput); err != nil {
		return newValidationError(map[string]string{"passphrase": err.Error()})
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(NormalizeLogin(user.Login)); err == nil {
			user.ID = id
		}
	}

	h.policy.PrepareCreate(user)

	if h.policy.NeedsSecurityToken(user) {
		if _, err := h.tokens.Issue(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue security token")
		}
	}

	if err := h.policy.Validate(ctx, user, h.repo.Users()); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}
		user = created
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account creation transaction failed")
	}

	if h.cfg.GetVerifyEmailRequired() && !user.Verified {
		if err := h.notifier.DeliverVerification(ctx, user); err != nil {
			h.logger.Error("deliver verification to %s: %v", user.LowercaseLogin, err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
