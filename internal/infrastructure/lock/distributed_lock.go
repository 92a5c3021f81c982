package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要账户锁？】
//
// 场景：同一个储蓄账户（余额 1000，最低余额 500）同时发起两笔 400 的取款
//
// 如果没有锁：
//   goroutine1: 查询余额=1000 -> 校验通过 -> 余额=600   OK
//   goroutine2: 查询余额=1000 -> 校验通过 -> 余额=600   丢失更新！
//
// 加了账户锁：
//   goroutine1: 获取锁 -> 查询余额=1000 -> 扣款 -> 余额=600 -> 释放锁
//   goroutine2: 等待... -> 获取锁 -> 查询余额=600 -> 低于最低余额，拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// 检查 value 是否匹配，匹配则删除
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 为什么要检查 value？
//
//	A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉！
func (l *DistributedLock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 账户锁：按账号维度加锁
// ============================================================================

// RedisLocker 基于 Redis 的账户锁，适用于多实例部署
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Lock 按全局顺序依次获取多把锁，任一失败则释放已获取的锁
//
// 【为什么要排序？】
// 转账 A->B 与 B->A 同时进行时，如果各自先锁源账户，会互相等待对方的锁。
// 统一按账号升序加锁后，两个请求都会先抢 min(A,B)，不会形成环。
func (r *RedisLocker) Lock(ctx context.Context, accountNumbers ...string) (Release, error) {
	token := uuid.NewString()
	held := make([]*DistributedLock, 0, len(accountNumbers))

	var once sync.Once
	release := func() {
		once.Do(func() {
			// 释放不跟随请求 ctx，避免请求取消后锁残留到 TTL
			unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Unlock(unlockCtx)
			}
		})
	}

	for _, key := range orderedKeys(accountNumbers) {
		l := NewDistributedLock(r.client, key, token, r.ttl)
		if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
			release()
			return nil, err
		}
		held = append(held, l)
	}
	return release, nil
}
