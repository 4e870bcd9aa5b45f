package jobclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"novelstudio/internal/domain"
	"novelstudio/internal/generation"
	"novelstudio/internal/infra"
)

// DefaultPollInterval is the fixed cadence between status queries.
const DefaultPollInterval = 2 * time.Second

// StatusQuerier performs a single status query.
type StatusQuerier interface {
	Status(ctx context.Context, jobID string) (*generation.StatusResponse, error)
}

// UpdateKind classifies what a poll tick observed.
type UpdateKind int

const (
	UpdateProgress UpdateKind = iota
	UpdateCompleted
	UpdateFailed
	UpdateQueryFailed
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateProgress:
		return "progress"
	case UpdateCompleted:
		return "completed"
	case UpdateFailed:
		return "failed"
	case UpdateQueryFailed:
		return "query_failed"
	default:
		return "unknown"
	}
}

// Update is delivered to the session owner after each successful or fatal
// query. Result is the raw terminal payload; Message is the backend's error
// text and may be empty.
type Update struct {
	Kind     UpdateKind
	Status   domain.RemoteStatus
	Progress int
	Result   string
	Message  string
	Err      error
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval  time.Duration
	Scheduler Scheduler
	Logger    *infra.Logger
}

// Poller follows a job until the backend reports a terminal status or a
// query fails. Failed queries are never retried.
type Poller struct {
	querier   StatusQuerier
	scheduler Scheduler
	interval  time.Duration
	logger    *infra.Logger
}

func NewPoller(querier StatusQuerier, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	return &Poller{
		querier:   querier,
		scheduler: scheduler,
		interval:  interval,
		logger:    infra.Component(opts.Logger, "poller"),
	}
}

// Interval returns the poll cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Session is one poll run for one job. It owns exactly one scheduled timer.
type Session struct {
	jobID  string
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	handle  Handle
	queries int
}

// JobID returns the job being polled.
func (s *Session) JobID() string {
	return s.jobID
}

// Active reports whether the session may still issue queries.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Queries returns how many status queries the session has issued.
func (s *Session) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Stop cancels the timer and any in-flight query. Once Stop returns no
// further query is issued.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handle := s.handle
	s.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	s.cancel()
}

// begin reserves the right to issue one query.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.queries++
	return true
}

// Start arms the timer for jobID. onUpdate runs on the scheduler's goroutine,
// one call at a time, in response order. The session stops itself before
// delivering a terminal update.
func (p *Poller) Start(parent context.Context, jobID string, onUpdate func(*Session, Update)) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{jobID: jobID, ctx: ctx, cancel: cancel}

	handle := p.scheduler.Every(p.interval, func() { p.tick(s, onUpdate) })

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		handle.Stop()
		return s
	}
	s.handle = handle
	s.mu.Unlock()

	p.logger.Debug().Str("job_id", jobID).Dur("interval", p.interval).Msg("poller: session started")
	return s
}

func (p *Poller) tick(s *Session, onUpdate func(*Session, Update)) {
	if !s.begin() {
		return
	}
	resp, err := p.querier.Status(s.ctx, s.jobID)
	if !s.Active() {
		// Disposed while the query was in flight.
		return
	}
	if err != nil {
		s.Stop()
		p.logger.Warn().Err(err).Str("job_id", s.jobID).Msg("poller: status query failed")
		onUpdate(s, Update{Kind: UpdateQueryFailed, Err: fmt.Errorf("%w: %v", domain.ErrPollQueryFailed, err)})
		return
	}
	if resp == nil || resp.Status == "" {
		p.logger.Debug().Str("job_id", s.jobID).Msg("poller: response without status ignored")
		return
	}

	update := Update{Status: resp.Status, Progress: resp.Progress}
	switch resp.Status {
	case domain.RemoteStatusCompleted:
		s.Stop()
		update.Kind = UpdateCompleted
		update.Result = resp.Result
	case domain.RemoteStatusFailed:
		s.Stop()
		update.Kind = UpdateFailed
		update.Message = resp.Error
		update.Err = domain.ErrJobFailed
	default:
		update.Kind = UpdateProgress
	}
	p.logger.Debug().
		Str("job_id", s.jobID).
		Str("status", string(resp.Status)).
		Int("progress", resp.Progress).
		Msg("poller: status observed")
	onUpdate(s, update)
}
