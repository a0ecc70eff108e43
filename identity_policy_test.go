package usersys_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-usersys"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUniqueness struct {
	logins map[string]uuid.UUID
	emails map[string]uuid.UUID
}

func (f fakeUniqueness) LoginTaken(ctx context.Context, login string, except uuid.UUID) (bool, error) {
	id, ok := f.logins[login]
	return ok && id != except, nil
}

func (f fakeUniqueness) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	id, ok := f.emails[email]
	return ok && id != except, nil
}

func (f fakeUniqueness) SecurityTokenTaken(ctx context.Context, token string, except uuid.UUID) (bool, error) {
	return false, nil
}

func TestIdentityPolicy_AssignAndValidate(t *testing.T) {
	policy := usersys.NewIdentityPolicy(usersys.DefaultOptions(), testHasher())

	user := &usersys.User{}
	require.NoError(t, policy.Assign(user, usersys.AccountInput{
		Login:                  "Ada",
		Email:                  "ada@example.com",
		Passphrase:             "analytical",
		PassphraseConfirmation: "analytical",
	}))
	policy.PrepareCreate(user)

	assert.Equal(t, "ada", user.LowercaseLogin)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEmpty(t, user.PassphraseHash)
	assert.NotEqual(t, "analytical", user.PassphraseHash)
	assert.NoError(t, policy.Hasher().ComparePassphrase("analytical", user.PassphraseHash))

	assert.NoError(t, policy.Validate(context.Background(), user, fakeUniqueness{}))
}

func TestIdentityPolicy_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(*usersys.Options)
		input  usersys.AccountInput
		fields []string
	}{
		{
			name:   "missing login and passphrase",
			input:  usersys.AccountInput{},
			fields: []string{"login", "passphrase"},
		},
		{
			name:   "short passphrase",
			input:  usersys.AccountInput{Login: "bob", Passphrase: "abc", PassphraseConfirmation: "abc"},
			fields: []string{"passphrase"},
		},
		{
			name:   "confirmation mismatch",
			input:  usersys.AccountInput{Login: "bob", Passphrase: "secret-1", PassphraseConfirmation: "secret-2"},
			fields: []string{"passphrase_confirmation"},
		},
		{
			name:   "invalid email",
			input:  usersys.AccountInput{Login: "bob", Email: "not-an-email", Passphrase: "secret-1"},
			fields: []string{"email"},
		},
		{
			name:   "email required",
			cfg:    func(o *usersys.Options) { o.RequireEmail = true },
			input:  usersys.AccountInput{Login: "bob", Passphrase: "secret-1"},
			fields: []string{"email"},
		},
		{
			name:   "email required for verification",
			cfg:    func(o *usersys.Options) { o.VerifyEmailRequired = true },
			input:  usersys.AccountInput{Login: "alice", Passphrase: "secret-1", PassphraseConfirmation: "secret-1"},
			fields: []string{"email"},
		},
		{
			name:   "login must be an email",
			cfg:    func(o *usersys.Options) { o.EmailIsLogin = true },
			input:  usersys.AccountInput{Login: "bob", Passphrase: "secret-1"},
			fields: []string{"login"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := usersys.DefaultOptions()
			if tt.cfg != nil {
				tt.cfg(opts)
			}
			policy := usersys.NewIdentityPolicy(opts, testHasher())

			user := &usersys.User{}
			require.NoError(t, policy.Assign(user, tt.input))
			policy.PrepareCreate(user)

			err := policy.Validate(context.Background(), user, fakeUniqueness{})
			require.Error(t, err)
			assert.True(t, usersys.IsValidationError(err))

			fields := usersys.ValidationErrors(err)
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestIdentityPolicy_Uniqueness(t *testing.T) {
	policy := usersys.NewIdentityPolicy(usersys.DefaultOptions(), testHasher())
	existing := uuid.New()
	uniq := fakeUniqueness{
		logins: map[string]uuid.UUID{"ada": existing},
		emails: map[string]uuid.UUID{"ada@example.com": existing},
	}

	user := &usersys.User{}
	require.NoError(t, policy.Assign(user, usersys.AccountInput{
		Login:                  "ADA",
		Email:                  "ada@example.com",
		Passphrase:             "analytical",
		PassphraseConfirmation: "analytical",
	}))
	policy.PrepareCreate(user)

	err := policy.Validate(context.Background(), user, uniq)
	require.Error(t, err)
	fields := usersys.ValidationErrors(err)
	assert.Equal(t, "has already been taken", fields["login"])
	assert.Equal(t, "has already been taken", fields["email"])

	// the record itself is excluded
	user.ID = existing
	assert.NoError(t, policy.Validate(context.Background(), user, uniq))
}

func TestIdentityPolicy_EmailIsLogin(t *testing.T) {
	opts := usersys.DefaultOptions()
	opts.EmailIsLogin = true
	policy := usersys.NewIdentityPolicy(opts, testHasher())

	user := &usersys.User{}
	policy.SetLogin(user, "Grace@Example.com")
	assert.Equal(t, "Grace@Example.com", user.Email)
	assert.Equal(t, "grace@example.com", user.LowercaseLogin)

	policy.SetEmail(user, "hopper@example.com")
	assert.Equal(t, "hopper@example.com", user.Login)
	assert.Equal(t, "hopper@example.com", user.Email)
}

func TestIdentityPolicy_LoginImmutableOncePersisted(t *testing.T) {
	policy := usersys.NewIdentityPolicy(usersys.DefaultOptions(), testHasher())

	created := time.Now()
	user := &usersys.User{Login: "ada", CreatedAt: &created}
	policy.SetLogin(user, "eve")
	assert.Equal(t, "ada", user.Login)
}

func TestIdentityPolicy_BlankPassphraseKeepsHash(t *testing.T) {
	policy := usersys.NewIdentityPolicy(usersys.DefaultOptions(), testHasher())

	user := &usersys.User{}
	require.NoError(t, policy.SetPassphrase(user, "first-secret"))
	hash := user.PassphraseHash

	require.NoError(t, policy.SetPassphrase(user, ""))
	assert.Equal(t, hash, user.PassphraseHash)
}

func TestIdentityPolicy_VerificationDefaults(t *testing.T) {
	opts := usersys.DefaultOptions()
	opts.VerifyEmailRequired = true
	policy := usersys.NewIdentityPolicy(opts, testHasher())

	user := &usersys.User{Login: "ada"}
	policy.PrepareCreate(user)
	assert.False(t, user.Verified)
	assert.True(t, policy.NeedsSecurityToken(user))

	opts.VerifyEmailRequired = false
	policy = usersys.NewIdentityPolicy(opts, testHasher())
	user = &usersys.User{Login: "ada"}
	policy.PrepareCreate(user)
	assert.True(t, user.Verified)
	assert.False(t, policy.NeedsSecurityToken(user))

	opts.AlwaysGenerateToken = true
	policy = usersys.NewIdentityPolicy(opts, testHasher())
	assert.True(t, policy.NeedsSecurityToken(user))
}

func TestIdentityPolicy_LoginCaseChangeOncePersisted(t *testing.T) {
	policy := usersys.NewIdentityPolicy(usersys.DefaultOptions(), testHasher())

	created := time.Now()
	user := &usersys.User{Login: "ada", LowercaseLogin: "ada", CreatedAt: &created}
	policy.SetLogin(user, "Ada")
	assert.Equal(t, "Ada", user.Login)
	assert.Equal(t, "ada", user.LowercaseLogin)
}

func TestIdentityPolicy_EmailChangeRequiresVerification(t *testing.T) {
	opts := usersys.DefaultOptions()
	opts.VerifyEmailRequired = true
	policy := usersys.NewIdentityPolicy(opts, testHasher())

	created := time.Now()
	user := &usersys.User{Login: "ada", Email: "ada@example.com", Verified: true, CreatedAt: &created}

	policy.SetEmail(user, "ada@example.com")
	assert.True(t, user.Verified)

	policy.SetEmail(user, "countess@example.com")
	assert.False(t, user.Verified)
	assert.Equal(t, "countess@example.com", user.Email)
}
