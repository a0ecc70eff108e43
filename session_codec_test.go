package usersys_test

import (
	"testing"

	"github.com/goliatone/go-usersys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCodec_RoundTrip(t *testing.T) {
	clock := newTestClock()
	codec := usersys.NewSessionCodec(testOptions(), "usersys-test").WithClock(clock.Now)

	envelope, err := codec.Encode("session-1", "members")
	require.NoError(t, err)
	require.NotEmpty(t, envelope)

	claims, err := codec.Decode(envelope)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.Subject)
	assert.Equal(t, "members", claims.Caller)
	assert.Equal(t, "usersys-test", claims.Issuer)
	assert.Equal(t, testEpoch.Add(usersys.DefaultSessionDuration), claims.ExpiresAt.Time.UTC())
}

func TestSessionCodec_RejectsForeignKey(t *testing.T) {
	clock := newTestClock()
	codec := usersys.NewSessionCodec(testOptions(), "usersys-test").WithClock(clock.Now)

	other := testOptions()
	other.SigningKey = "ffffffffffffffffffffffffffffffff"
	forger := usersys.NewSessionCodec(other, "usersys-test").WithClock(clock.Now)

	envelope, err := forger.Encode("session-1", "members")
	require.NoError(t, err)

	_, err = codec.Decode(envelope)
	require.Error(t, err)
	assertTextCode(t, err, usersys.TextCodeInvalidSessionEnvelope)
}

func TestSessionCodec_RejectsExpired(t *testing.T) {
	clock := newTestClock()
	codec := usersys.NewSessionCodec(testOptions(), "usersys-test").WithClock(clock.Now)

	envelope, err := codec.Encode("session-1", "members")
	require.NoError(t, err)

	clock.Advance(codec.TTL() + 1)
	_, err = codec.Decode(envelope)
	require.Error(t, err)
	assertTextCode(t, err, usersys.TextCodeInvalidSessionEnvelope)
}

func TestSessionCodec_RejectsOtherIssuer(t *testing.T) {
	clock := newTestClock()
	codec := usersys.NewSessionCodec(testOptions(), "usersys-test").WithClock(clock.Now)
	other := usersys.NewSessionCodec(testOptions(), "someone-else").WithClock(clock.Now)

	envelope, err := other.Encode("session-1", "members")
	require.NoError(t, err)

	_, err = codec.Decode(envelope)
	require.Error(t, err)
}

func TestSessionCodec_RejectsGarbage(t *testing.T) {
	codec := usersys.NewSessionCodec(testOptions(), "")

	for _, value := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(value)
		assert.Error(t, err, value)
	}
}
