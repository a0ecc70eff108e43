package usersys

import "context"

// Notifier delivers the messages carrying security tokens. The user
// passed in always has a valid SecurityToken.
type Notifier interface {
	DeliverVerification(ctx context.Context, user *User) error
	DeliverRecovery(ctx context.Context, user *User) error
}

// LogNotifier writes deliveries to a logger, useful in development
type LogNotifier struct {
	Logger Logger
}

// DeliverVerification implements Notifier
func (n LogNotifier) DeliverVerification(ctx context.Context, user *User) error {
	normalizeLogger(n.Logger).Info("verification for %s <%s>: token=%s", user.LowercaseLogin, user.Email, user.SecurityToken)
	return nil
}

// DeliverRecovery implements Notifier
func (n LogNotifier) DeliverRecovery(ctx context.Context, user *User) error {
	normalizeLogger(n.Logger).Info("recovery for %s <%s>: token=%s", user.LowercaseLogin, user.Email, user.SecurityToken)
	return nil
}
