package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendingdesk/backoffice/internal/cache"
)

type snapshot struct {
	Total int    `json:"total"`
	Sum   string `json:"sum"`
}

func newStore(t *testing.T) (*cache.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisStore(client, "bo:"), s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	var got snapshot
	ok, err := store.Get(ctx, cache.KeyLoanBook, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, cache.KeyLoanBook, snapshot{Total: 3, Sum: "1700"}, time.Minute))
	assert.True(t, mr.Exists("bo:"+cache.KeyLoanBook))

	ok, err = store.Get(ctx, cache.KeyLoanBook, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, snapshot{Total: 3, Sum: "1700"}, got)

	mr.FastForward(2 * time.Minute)
	ok, err = store.Get(ctx, cache.KeyLoanBook, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, cache.KeyDebtorLoans("d-1"), snapshot{Total: 1}, time.Minute))
	require.NoError(t, store.Set(ctx, cache.KeyLoanBook, snapshot{Total: 2}, time.Minute))
	require.NoError(t, store.Delete(ctx, cache.KeyDebtorLoans("d-1"), cache.KeyLoanBook))

	assert.False(t, mr.Exists("bo:"+cache.KeyLoanBook))
	assert.False(t, mr.Exists("bo:stats:loans:debtor:d-1"))
	assert.NoError(t, store.Delete(ctx))
}

func TestRememberComputesOnce(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (snapshot, error) {
		calls++
		return snapshot{Total: calls}, nil
	}

	first, err := cache.Remember(ctx, store, "k", time.Minute, fn)
	require.NoError(t, err)
	second, err := cache.Remember(ctx, store, "k", time.Minute, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestRememberPropagatesErrorsAndSkipsStore(t *testing.T) {
	store, mr := newStore(t)
	boom := errors.New("boom")

	_, err := cache.Remember(context.Background(), store, "k", time.Minute, func(context.Context) (snapshot, error) {
		return snapshot{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("bo:k"))
}

func TestRememberWithNopAlwaysComputes(t *testing.T) {
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := cache.Remember(context.Background(), cache.Nop{}, "k", time.Minute, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestRememberFallsThroughWhenRedisFails(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client, "bo:")
	ctx := context.Background()

	mock.ExpectGet("bo:" + cache.KeyLoanBook).SetErr(errors.New("redis is down"))

	calls := 0
	got, err := cache.Remember(ctx, store, cache.KeyLoanBook, time.Minute, func(context.Context) (snapshot, error) {
		calls++
		return snapshot{Total: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, got.Total)
}

func TestRedisStoreDeleteReportsErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client, "bo:")

	mock.ExpectDel("bo:"+cache.KeyLoanBook, "bo:"+cache.KeyDebtorLoans("d-1")).SetErr(errors.New("redis is down"))

	err := store.Delete(context.Background(), cache.KeyLoanBook, cache.KeyDebtorLoans("d-1"))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
