package usersys_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-usersys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var testEpoch = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range usersys.Models() {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(context.Background())
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testHasher() usersys.PassphraseHasher {
	return usersys.NewBcryptHasher(bcrypt.MinCost)
}

func testOptions() *usersys.Options {
	opts := usersys.DefaultOptions()
	opts.SigningKey = "0123456789abcdef0123456789abcdef"
	return opts
}

type recordingNotifier struct {
	mu            sync.Mutex
	verifications []string
	recoveries    []string
}

func (n *recordingNotifier) DeliverVerification(ctx context.Context, user *usersys.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, user.SecurityToken)
	return nil
}

func (n *recordingNotifier) DeliverRecovery(ctx context.Context, user *usersys.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recoveries = append(n.recoveries, user.SecurityToken)
	return nil
}

func (n *recordingNotifier) lastVerification() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifications) == 0 {
		return ""
	}
	return n.verifications[len(n.verifications)-1]
}

func (n *recordingNotifier) lastRecovery() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.recoveries) == 0 {
		return ""
	}
	return n.recoveries[len(n.recoveries)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []usersys.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event usersys.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []usersys.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []usersys.ActivityEventType{}
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(format string, args ...any) {}
func (nopLogger) Info(format string, args ...any)  {}
func (nopLogger) Warn(format string, args ...any)  {}
func (nopLogger) Error(format string, args ...any) {}

type testEnv struct {
	db       *bun.DB
	clock    *testClock
	opts     *usersys.Options
	repo     usersys.RepositoryManager
	callers  *usersys.CallerRegistry
	service  *usersys.Service
	notifier *recordingNotifier
	activity *recordingSink
}

func newTestEnv(t *testing.T, configure ...func(*usersys.Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       setupTestDB(t),
		clock:    newTestClock(),
		opts:     testOptions(),
		notifier: &recordingNotifier{},
		activity: &recordingSink{},
	}
	for _, fn := range configure {
		fn(env.opts)
	}

	env.repo = usersys.NewRepositoryManager(env.db, usersys.WithManagerClock(env.clock.Now))

	hasher := testHasher()
	users := env.repo.Users()
	env.callers = usersys.NewCallerRegistry(usersys.CallerConfig{
		Strategy:   usersys.NewPasswordStrategy(users, hasher).WithClock(env.clock.Now).WithLogger(nopLogger{}),
		Identities: users,
		Sessions:   env.repo.Sessions(),
	})
	require.NoError(t, env.callers.Register("members", usersys.CallerConfig{}))

	env.service = usersys.NewService(env.opts, env.repo, env.callers,
		usersys.WithServiceClock(env.clock.Now),
		usersys.WithServiceLogger(nopLogger{}),
		usersys.WithPassphraseHasher(hasher),
		usersys.WithNotifier(env.notifier),
		usersys.WithActivitySink(env.activity),
	)
	return env
}

// createUser stores a verified account with the given passphrase
func (e *testEnv) createUser(t *testing.T, login, email, passphrase string) *usersys.User {
	t.Helper()

	hash, err := testHasher().HashPassphrase(passphrase)
	require.NoError(t, err)

	user, err := e.repo.Users().Register(context.Background(), &usersys.User{
		Login:          login,
		Email:          email,
		PassphraseHash: hash,
		Verified:       true,
	})
	require.NoError(t, err)
	return user
}

func assertTextCode(t *testing.T, err error, code string) {
	t.Helper()

	var richErr *goerrors.Error
	if assert.True(t, errors.As(err, &richErr), "expected a go-errors error, got %v", err) {
		assert.Equal(t, code, richErr.TextCode)
	}
}
