package lock

import (
	"context"
	"sort"
)

// Release 释放本次获取的全部锁，可重复调用
type Release func()

// Locker 账户级互斥锁
type Locker interface {
	Lock(ctx context.Context, accountNumbers ...string) (Release, error)
}

// Key 账户锁的 key
func Key(accountNumber string) string {
	return "ledger:lock:account:" + accountNumber
}

// orderedKeys 去重并排序，保证所有请求按同一顺序加锁
func orderedKeys(accountNumbers []string) []string {
	seen := make(map[string]struct{}, len(accountNumbers))
	keys := make([]string, 0, len(accountNumbers))
	for _, n := range accountNumbers {
		k := Key(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
