package reactivity

import (
	"sort"
	"sync"
	"time"
)

// Scheduler 延迟执行
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler 基于 time.AfterFunc
type TimerScheduler struct{}

// After 延迟 d 后执行 fn
func (TimerScheduler) After(d time.Duration, fn func()) {
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}

// ManualScheduler 手动推进时间的调度器
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []manualTask
}

type manualTask struct {
	at  time.Duration
	seq int
	fn  func()
}

// NewManualScheduler 创建手动调度器
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After 登记任务
func (m *ManualScheduler) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks = append(m.tasks, manualTask{at: m.now + d, seq: m.seq, fn: fn})
}

// Advance 推进时间并按到期顺序执行任务
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now += d
	var due, rest []manualTask
	for _, task := range m.tasks {
		if task.at <= m.now {
			due = append(due, task)
		} else {
			rest = append(rest, task)
		}
	}
	m.tasks = rest
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	for _, task := range due {
		task.fn()
	}
	return len(due)
}

// Pending 未执行的任务数
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
