package jobclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"novelstudio/internal/domain"
	"novelstudio/internal/generation"
)

// manualScheduler fires ticks only when the test asks it to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu       sync.Mutex
	fn       func()
	interval time.Duration
	stopped  bool
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (m *manualScheduler) Every(interval time.Duration, fn func()) Handle {
	t := &manualTimer{fn: fn, interval: interval}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return t
}

// Fire runs one tick of every live timer on the calling goroutine.
func (m *manualScheduler) Fire() {
	m.mu.Lock()
	timers := append([]*manualTimer(nil), m.timers...)
	m.mu.Unlock()
	for _, t := range timers {
		if !t.isStopped() {
			t.fn()
		}
	}
}

func (m *manualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

func (m *manualScheduler) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type scripted struct {
	resp *generation.StatusResponse
	err  error
}

// scriptedQuerier replays responses in order, then keeps answering pending.
type scriptedQuerier struct {
	mu        sync.Mutex
	responses []scripted
	calls     int
	ids       []string
}

func (q *scriptedQuerier) push(resp *generation.StatusResponse, err error) *scriptedQuerier {
	q.mu.Lock()
	q.responses = append(q.responses, scripted{resp: resp, err: err})
	q.mu.Unlock()
	return q
}

func (q *scriptedQuerier) Status(ctx context.Context, jobID string) (*generation.StatusResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	q.ids = append(q.ids, jobID)
	if len(q.responses) == 0 {
		return &generation.StatusResponse{Status: domain.RemoteStatusPending}, nil
	}
	next := q.responses[0]
	q.responses = q.responses[1:]
	return next.resp, next.err
}

func (q *scriptedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type fakeSubmitter struct {
	mu     sync.Mutex
	ids    []string
	err    error
	calls  int
	gate   chan struct{}
	inside chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, novel string) (string, error) {
	f.mu.Lock()
	f.calls++
	gate, inside := f.gate, f.inside
	f.mu.Unlock()
	if inside != nil {
		inside <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.ids) == 0 {
		return "", errors.New("no id scripted")
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryRecorder struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (r *memoryRecorder) Save(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, *job.Clone())
	return nil
}

func (r *memoryRecorder) Jobs() []domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Job(nil), r.jobs...)
}

func statusResp(status domain.RemoteStatus, progress int) *generation.StatusResponse {
	return &generation.StatusResponse{Status: status, Progress: progress}
}
