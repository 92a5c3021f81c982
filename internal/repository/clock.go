package repository

import "time"

// Clock 时间来源，测试时可替换
type Clock func() time.Time

// stamp 返回当前时间，但不早于 prev，保证同一账户的时间戳单调不减
func (c Clock) stamp(prev time.Time) time.Time {
	now := c()
	if now.Before(prev) {
		return prev
	}
	return now
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
