package protocol

import "time"

// Clock 秒级时间来源，对应链上 block.timestamp
type Clock interface {
	Now() uint64
}

// ClockFunc 函数适配器
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// SystemClock 使用本机时间
var SystemClock Clock = ClockFunc(func() uint64 { return uint64(time.Now().Unix()) })

// FixedClock 固定时刻，测试与模拟使用
func FixedClock(ts uint64) Clock {
	return ClockFunc(func() uint64 { return ts })
}
