package jobclient

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Stop is idempotent and may be called
// from inside the callback itself.
type Handle interface {
	Stop()
}

// Scheduler arms repeating callbacks.
type Scheduler interface {
	// Every runs fn every interval until the returned handle is stopped. The
	// next interval starts only after fn returns, so invocations never
	// overlap.
	Every(interval time.Duration, fn func()) Handle
}

// TimerScheduler is the production Scheduler backed by time.Timer.
type TimerScheduler struct{}

func (TimerScheduler) Every(interval time.Duration, fn func()) Handle {
	h := &timerHandle{done: make(chan struct{})}
	go h.run(interval, fn)
	return h
}

type timerHandle struct {
	done chan struct{}
	once sync.Once
}

func (h *timerHandle) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *timerHandle) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *timerHandle) run(interval time.Duration, fn func()) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-timer.C:
		}
		// Stop may race with the timer firing; done wins.
		if h.stopped() {
			return
		}
		fn()
		timer.Reset(interval)
	}
}

var _ Scheduler = TimerScheduler{}
