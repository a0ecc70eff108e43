package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	usersys "github.com/goliatone/go-usersys"
	"github.com/goliatone/go-usersys/redisstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewStore(client, opts...), mr
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, redisstore.WithPrefix("test"))

	userID := uuid.New()
	created, err := store.CreateSession(ctx, &usersys.Session{
		UserID: userID,
		Caller: "members",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	assert.True(t, mr.Exists("test:session:"+created.ID.String()))

	members, err := mr.SMembers("test:user:" + userID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID.String()}, members)

	found, err := store.GetSession(ctx, created.ID.String())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, "members", found.Caller)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newStore(t)

	found, err := store.GetSession(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = store.GetSession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_Touch(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	created, err := store.CreateSession(ctx, &usersys.Session{UserID: uuid.New()})
	require.NoError(t, err)

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.TouchSession(ctx, created.ID.String(), at))

	found, err := store.GetSession(ctx, created.ID.String())
	require.NoError(t, err)
	assert.True(t, at.Equal(found.LastAccess))

	assert.NoError(t, store.TouchSession(ctx, uuid.NewString(), at))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	userID := uuid.New()
	first, err := store.CreateSession(ctx, &usersys.Session{UserID: userID})
	require.NoError(t, err)
	second, err := store.CreateSession(ctx, &usersys.Session{UserID: userID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, first.ID.String()))

	found, err := store.GetSession(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Nil(t, found)

	ids, err := store.SessionIDs(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID.String()}, ids)

	require.NoError(t, store.DeleteUserSessions(ctx, userID))
	assert.False(t, mr.Exists("usersys:session:"+second.ID.String()))
	assert.False(t, mr.Exists("usersys:user:"+userID.String()))
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, redisstore.WithTTL(time.Minute))

	created, err := store.CreateSession(ctx, &usersys.Session{UserID: uuid.New()})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	found, err := store.GetSession(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Nil(t, found)
}
