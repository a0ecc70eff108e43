package usersys_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-usersys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisablement_Disable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ada", "", "analytical")

	disablement := env.service.Disablement()

	off, err := disablement.IsDisabled(ctx, user)
	require.NoError(t, err)
	assert.False(t, off)

	period, err := disablement.Disable(ctx, user,
		usersys.DisableUntil(testEpoch.Add(time.Hour)),
		usersys.DisableReason("abuse"),
	)
	require.NoError(t, err)
	assert.True(t, testEpoch.Equal(period.DisabledFrom))
	assert.False(t, period.IsIndefinite())
	require.NotNil(t, user.DisabledPeriodID)
	assert.Equal(t, period.ID, *user.DisabledPeriodID)

	off, err = disablement.IsDisabled(ctx, user)
	require.NoError(t, err)
	assert.True(t, off)

	off, err = disablement.IsDisabled(ctx, user, testEpoch.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, off)

	stored, err := env.repo.Users().GetByLogin(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, stored.DisabledPeriodID)
	assert.Equal(t, period.ID, *stored.DisabledPeriodID)
}

func TestDisablement_UntilBeforeFromIsIndefinite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ada", "", "analytical")

	period, err := env.service.Disablement().Disable(ctx, user,
		usersys.DisableFrom(testEpoch),
		usersys.DisableUntil(testEpoch.Add(-time.Minute)),
	)
	require.NoError(t, err)
	assert.True(t, period.IsIndefinite())

	off, err := env.service.Disablement().IsDisabled(ctx, user, testEpoch.Add(24*365*time.Hour))
	require.NoError(t, err)
	assert.True(t, off)

	period, err = env.service.Disablement().Disable(ctx, user,
		usersys.DisableFrom(testEpoch),
		usersys.DisableUntil(testEpoch),
	)
	require.NoError(t, err)
	assert.True(t, period.IsIndefinite())
}

func TestDisablement_HistoryKeepsEveryPeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ada", "", "analytical")
	disablement := env.service.Disablement()

	first, err := disablement.Disable(ctx, user,
		usersys.DisableFrom(testEpoch),
		usersys.DisableUntil(testEpoch.Add(48*time.Hour)),
	)
	require.NoError(t, err)

	second, err := disablement.Disable(ctx, user,
		usersys.DisableFrom(testEpoch.Add(time.Hour)),
		usersys.DisableUntil(testEpoch.Add(2*time.Hour)),
	)
	require.NoError(t, err)

	history, err := disablement.History(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	// the shorter, more recent period ended but the first one still covers
	off, err := disablement.IsDisabled(ctx, user, testEpoch.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, off)

	current, err := disablement.CurrentPeriod(ctx, user, testEpoch.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
}

func TestDisabledPeriod_Covers(t *testing.T) {
	until := testEpoch.Add(time.Hour)
	period := &usersys.DisabledPeriod{DisabledFrom: testEpoch, DisabledUntil: &until}

	assert.False(t, period.Covers(testEpoch.Add(-time.Second)))
	assert.True(t, period.Covers(testEpoch))
	assert.True(t, period.Covers(until.Add(-time.Second)))
	assert.False(t, period.Covers(until))

	open := &usersys.DisabledPeriod{DisabledFrom: testEpoch}
	assert.True(t, open.Covers(testEpoch.Add(1000*time.Hour)))

	var missing *usersys.DisabledPeriod
	assert.False(t, missing.Covers(testEpoch))
}
