// Package timer 抽象延迟回调，状态容器通过它调度重试与自动消失。
package timer

import "time"

// Timer 可取消的延迟回调句柄
type Timer interface {
	// Stop 取消回调，回调尚未执行时返回 true
	Stop() bool
}

// Scheduler 延迟回调调度器
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// System 基于 time.AfterFunc 的真实调度器
type System struct{}

func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
