package usersys_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-usersys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJar struct {
	in  map[string]string
	out map[string]*router.Cookie
}

func newFakeJar(in map[string]string) *fakeJar {
	if in == nil {
		in = map[string]string{}
	}
	return &fakeJar{in: in, out: map[string]*router.Cookie{}}
}

func (j *fakeJar) Cookies(key string, defaultValue ...string) string {
	if v, ok := j.in[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (j *fakeJar) Cookie(cookie *router.Cookie) {
	j.out[cookie.Name] = cookie
}

func newTestAdapter(t *testing.T) (*testEnv, *usersys.HTTPAdapter, *usersys.SessionCodec) {
	t.Helper()
	env := newTestEnv(t)
	codec := usersys.NewSessionCodec(env.opts, "usersys-test").WithClock(env.clock.Now)
	return env, usersys.NewHTTPAdapter(env.service, codec).WithLogger(nopLogger{}), codec
}

func TestHTTPAdapter_LoadRequest(t *testing.T) {
	_, adapter, codec := newTestAdapter(t)

	envelope, err := codec.Encode("session-1", "members")
	require.NoError(t, err)

	jar := newFakeJar(map[string]string{
		usersys.DefaultSessionCookieName:  envelope,
		usersys.DefaultReturnToCookieName: "/reports",
	})

	req := adapter.LoadRequest(jar, "members", "/dashboard")
	assert.Equal(t, "session-1", req.SessionID)
	assert.Equal(t, "/reports", req.ReturnTo)
	assert.Equal(t, "/dashboard", req.Target)
	assert.False(t, req.SessionChanged())
	assert.False(t, req.ReturnToChanged())

	require.NoError(t, adapter.PersistRequest(jar, req))
	assert.Empty(t, jar.out)
}

func TestHTTPAdapter_LoadRequestIgnoresOtherCaller(t *testing.T) {
	_, adapter, codec := newTestAdapter(t)

	envelope, err := codec.Encode("session-1", "staff")
	require.NoError(t, err)

	jar := newFakeJar(map[string]string{usersys.DefaultSessionCookieName: envelope})
	req := adapter.LoadRequest(jar, "members", "/")
	assert.Empty(t, req.SessionID)
}

func TestHTTPAdapter_InvalidEnvelopeIsCleared(t *testing.T) {
	_, adapter, _ := newTestAdapter(t)

	jar := newFakeJar(map[string]string{usersys.DefaultSessionCookieName: "forged"})
	req := adapter.LoadRequest(jar, "members", "/")
	assert.Empty(t, req.SessionID)
	assert.True(t, req.SessionChanged())

	require.NoError(t, adapter.PersistRequest(jar, req))
	cookie, ok := jar.out[usersys.DefaultSessionCookieName]
	require.True(t, ok)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func TestHTTPAdapter_PersistSession(t *testing.T) {
	_, adapter, codec := newTestAdapter(t)

	req := usersys.NewRequest("members", "/login")
	req.SessionID = "session-2"

	jar := newFakeJar(nil)
	require.NoError(t, adapter.PersistRequest(jar, req))

	cookie, ok := jar.out[usersys.DefaultSessionCookieName]
	require.True(t, ok)
	assert.True(t, cookie.HTTPOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)

	claims, err := codec.Decode(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session-2", claims.Subject)
	assert.Equal(t, "members", claims.Caller)
}

func TestHTTPAdapter_PersistLogout(t *testing.T) {
	_, adapter, codec := newTestAdapter(t)

	envelope, err := codec.Encode("session-1", "members")
	require.NoError(t, err)
	jar := newFakeJar(map[string]string{usersys.DefaultSessionCookieName: envelope})

	req := adapter.LoadRequest(jar, "members", "/logout")
	req.ClearIdentity()

	require.NoError(t, adapter.PersistRequest(jar, req))
	cookie, ok := jar.out[usersys.DefaultSessionCookieName]
	require.True(t, ok)
	assert.Empty(t, cookie.Value)
}

func TestHTTPAdapter_PersistReturnTo(t *testing.T) {
	_, adapter, _ := newTestAdapter(t)

	jar := newFakeJar(nil)
	req := adapter.LoadRequest(jar, "members", "/reports/7")
	req.RememberReturn()

	require.NoError(t, adapter.PersistRequest(jar, req))
	cookie, ok := jar.out[usersys.DefaultReturnToCookieName]
	require.True(t, ok)
	assert.Equal(t, "/reports/7", cookie.Value)

	jar = newFakeJar(map[string]string{usersys.DefaultReturnToCookieName: "/reports/7"})
	req = adapter.LoadRequest(jar, "members", "/login")
	assert.Equal(t, "/reports/7", req.TakeReturn())

	require.NoError(t, adapter.PersistRequest(jar, req))
	cookie, ok = jar.out[usersys.DefaultReturnToCookieName]
	require.True(t, ok)
	assert.Empty(t, cookie.Value)
}

func TestHTTPAdapter_InsecureCookies(t *testing.T) {
	_, adapter, _ := newTestAdapter(t)
	adapter.WithInsecureCookies()

	req := usersys.NewRequest("members", "/login")
	req.SessionID = "session-3"

	jar := newFakeJar(nil)
	require.NoError(t, adapter.PersistRequest(jar, req))
	assert.False(t, jar.out[usersys.DefaultSessionCookieName].Secure)
}

func TestHTTPAdapter_ForeignReturnToIsCleared(t *testing.T) {
	_, adapter, _ := newTestAdapter(t)

	jar := newFakeJar(map[string]string{usersys.DefaultReturnToCookieName: "//evil.example/phish"})
	req := adapter.LoadRequest(jar, "members", "/login")
	assert.Empty(t, req.ReturnTo)
	assert.Empty(t, req.TakeReturn())

	require.NoError(t, adapter.PersistRequest(jar, req))
	cookie, ok := jar.out[usersys.DefaultReturnToCookieName]
	require.True(t, ok)
	assert.Empty(t, cookie.Value)
}
