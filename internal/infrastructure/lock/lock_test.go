package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestOrderedKeysDedupAndSort(t *testing.T) {
	keys := orderedKeys([]string{"200000000000", "100000000000", "200000000000"})
	assert.Equal(t, []string{Key("100000000000"), Key("200000000000")}, keys)
}

func TestDistributedLockMutualExclusion(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	a := NewDistributedLock(client, "k", "a", time.Second)
	b := NewDistributedLock(client, "k", "b", time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b 不能删除 a 的锁
	assert.ErrorIs(t, b.Unlock(ctx), ErrLockExpired)
	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedLockGivesUp(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "holder", time.Minute)
	_, err := holder.TryLock(ctx)
	require.NoError(t, err)

	waiter := NewDistributedLock(client, "k", "waiter", time.Minute)
	assert.ErrorIs(t, waiter.Lock(ctx, time.Millisecond, 3), ErrLockFailed)
}

func TestRedisLockerSerializes(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, time.Millisecond, 10000)

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accounts := []string{"111111111111", "222222222222"}
			if i%2 == 1 {
				accounts[0], accounts[1] = accounts[1], accounts[0]
			}
			release, err := locker.Lock(context.Background(), accounts...)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.False(t, mr.Exists(Key("111111111111")))
	assert.False(t, mr.Exists(Key("222222222222")))
}

func TestRedisLockerReleasesPartialOnFailure(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(Key("222222222222"), "someone-else"))

	locker := NewRedisLocker(client, time.Second, time.Millisecond, 2)
	_, err := locker.Lock(context.Background(), "111111111111", "222222222222")
	require.ErrorIs(t, err, ErrLockFailed)

	assert.False(t, mr.Exists(Key("111111111111")), "first lock must be released")
	got, _ := mr.Get(Key("222222222222"))
	assert.Equal(t, "someone-else", got)
}

func TestLocalLockerSerializesAndCleansUp(t *testing.T) {
	locker := NewLocalLocker()

	var (
		counter int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "111111111111", "222222222222"
			if i%2 == 0 {
				a, b = b, a
			}
			release, err := locker.Lock(context.Background(), a, b)
			if !assert.NoError(t, err) {
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locker.size())
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Lock(context.Background(), "111111111111")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "000000000000", "111111111111")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, locker.size())

	release, err = locker.Lock(context.Background(), "111111111111")
	require.NoError(t, err)
	release()
}
