package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore_PutGet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Credential{SessionID: "s1", Token: "tok", TokenType: "Token"}))

	raw, err := mr.Get("session:s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"tok","token_type":"Token"}`, raw)
	assert.Equal(t, time.Hour, mr.TTL("session:s1"))

	c, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, Credential{SessionID: "s1", Token: "tok", TokenType: "Token"}, *c)
}

func TestRedisStore_MissingIsNil(t *testing.T) {
	store, _ := setupTestRedis(t)

	c, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = store.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("session:s1", "{not json"))

	_, err := store.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal session")
}

func TestRedisStore_PutRequiresToken(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.Error(t, store.Put(context.Background(), Credential{SessionID: "s1"}))
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Credential{SessionID: "s1", Token: "tok"}))

	require.NoError(t, store.Delete(ctx, "s1"))

	assert.False(t, mr.Exists("session:s1"))
	c, err := store.ForSession("s1").Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRedisStore_Expires(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Credential{SessionID: "s1", Token: "tok"}))

	mr.FastForward(2 * time.Hour)

	c, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get session")
	assert.Error(t, store.Ping(context.Background()))
}
