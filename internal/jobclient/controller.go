package jobclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/internal/notice"
)

// ErrDiscarded is returned by Submit when the controller was canceled while
// the creation request was in flight.
var ErrDiscarded = errors.New("job discarded")

// Submitter issues the creation request for a novel.
type Submitter interface {
	Submit(ctx context.Context, novel string) (string, error)
}

// Recorder receives every job that reached an outcome.
type Recorder interface {
	Save(ctx context.Context, job *domain.Job) error
}

// Snapshot is a copy of the controller state for the presentation layer.
// Version increases with every change so stale snapshots can be dropped.
type Snapshot struct {
	Version uint64          `json:"version"`
	State   domain.JobState `json:"state"`
	Job     *domain.Job     `json:"job,omitempty"`
	Notice  *notice.Notice  `json:"notice,omitempty"`
}

// Options configures a Controller.
type Options struct {
	Submitter Submitter
	Poller    *Poller
	Notices   *notice.Catalog
	Locale    string
	Recorder  Recorder
	Logger    *infra.Logger
	OnChange  func(Snapshot)
	Now       func() time.Time
}

// Controller owns the lifecycle of one novel-to-video job at a time. A
// polling session exists exactly while the state is Polling.
type Controller struct {
	submitter Submitter
	poller    *Poller
	notices   *notice.Catalog
	recorder  Recorder
	logger    *infra.Logger
	onChange  func(Snapshot)
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	locale  string
	state   domain.JobState
	job     *domain.Job
	session *Session
	notice  *notice.Notice
	attempt uint64
	version uint64
	closed  bool
}

func NewController(opts Options) (*Controller, error) {
	if opts.Submitter == nil {
		return nil, errors.New("jobclient: submitter is required")
	}
	if opts.Poller == nil {
		return nil, errors.New("jobclient: poller is required")
	}
	notices := opts.Notices
	if notices == nil {
		notices = notice.NewCatalog()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		submitter: opts.Submitter,
		poller:    opts.Poller,
		notices:   notices,
		recorder:  opts.Recorder,
		logger:    infra.Component(opts.Logger, "controller"),
		onChange:  opts.OnChange,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		locale:    notices.Normalize(opts.Locale),
		state:     domain.JobStateIdle,
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetLocale changes the language of future notices.
func (c *Controller) SetLocale(locale string) {
	c.mu.Lock()
	c.locale = c.notices.Normalize(locale)
	c.mu.Unlock()
}

// Submit starts a new job for the novel text and returns its identifier.
// Blank text never reaches the backend. A job that is still polling is
// canceled and replaced; a submission already in flight is rejected.
func (c *Controller) Submit(ctx context.Context, novel string) (string, error) {
	novel = strings.TrimSpace(novel)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", domain.ErrControllerClosed
	}
	if novel == "" {
		c.setNoticeLocked(notice.KindEmptyInput, "")
		snap := c.bumpLocked()
		c.mu.Unlock()
		c.emit(snap)
		return "", domain.ErrEmptyInput
	}
	if c.state == domain.JobStateSubmitting {
		c.mu.Unlock()
		return "", domain.ErrSubmissionInFlight
	}
	if c.session != nil {
		c.logger.Info().Str("job_id", c.session.JobID()).Msg("controller: replacing job still polling")
	}
	c.discardLocked()
	c.state = domain.JobStateSubmitting
	c.notice = nil
	attempt := c.attempt
	snap := c.bumpLocked()
	c.mu.Unlock()
	c.emit(snap)

	id, err := c.submitter.Submit(ctx, novel)

	c.mu.Lock()
	if c.closed || c.attempt != attempt {
		c.mu.Unlock()
		if err == nil {
			c.logger.Info().Str("job_id", id).Msg("controller: submission discarded after cancel")
		}
		return "", ErrDiscarded
	}
	if err != nil {
		c.state = domain.JobStateIdle
		c.setNoticeLocked(notice.KindSubmissionFailed, "")
		snap = c.bumpLocked()
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("controller: submission failed")
		c.emit(snap)
		return "", fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	c.job = &domain.Job{
		ID:          id,
		Prompt:      novel,
		State:       domain.JobStatePolling,
		Status:      domain.RemoteStatusPending,
		SubmittedAt: c.now(),
	}
	c.state = domain.JobStatePolling
	c.session = c.poller.Start(c.ctx, id, c.handleUpdate)
	c.setNoticeLocked(notice.KindSubmitAccepted, "")
	snap = c.bumpLocked()
	c.mu.Unlock()

	c.logger.Info().Str("job_id", id).Msg("controller: job submitted, polling")
	c.emit(snap)
	return id, nil
}

// Cancel discards the current job, stopping its timer, and returns to Idle.
// The controller stays usable.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.closed || (c.state == domain.JobStateIdle && c.job == nil) {
		c.mu.Unlock()
		return
	}
	c.discardLocked()
	c.state = domain.JobStateIdle
	c.notice = nil
	snap := c.bumpLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Close disposes the controller. The live timer is stopped before Close
// returns; later submissions fail with ErrControllerClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.discardLocked()
	c.state = domain.JobStateIdle
	c.closed = true
	c.bumpLocked()
	c.mu.Unlock()
	c.cancel()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) handleUpdate(s *Session, u Update) {
	c.mu.Lock()
	if c.session != s || c.job == nil {
		c.mu.Unlock()
		c.logger.Debug().Str("job_id", s.JobID()).Str("kind", u.Kind.String()).Msg("controller: update for discarded job dropped")
		return
	}
	job := c.job
	var finished *domain.Job

	switch u.Kind {
	case UpdateProgress:
		job.Progress = domain.ClampProgress(u.Progress)
		job.Status = u.Status
	case UpdateCompleted:
		c.stopSessionLocked()
		job.Progress = domain.ClampProgress(u.Progress)
		job.Status = u.Status
		decoded := Decode(u.Result)
		if decoded.OK {
			job.Result = decoded.Payload
		} else if strings.TrimSpace(u.Result) != "" {
			c.logger.Warn().Str("job_id", job.ID).Msg("controller: completed payload could not be decoded")
		}
		job.State = domain.JobStateCompleted
		job.FinishedAt = c.now()
		c.state = domain.JobStateCompleted
		c.setNoticeLocked(notice.KindCompleted, "")
		finished = job.Clone()
	case UpdateFailed, UpdateQueryFailed:
		c.stopSessionLocked()
		kind := notice.KindJobFailed
		if u.Kind == UpdateQueryFailed {
			kind = notice.KindPollQueryFailed
		}
		c.setNoticeLocked(kind, u.Message)
		job.State = domain.JobStateFailed
		job.Status = u.Status
		job.Error = c.notice.Message
		job.FinishedAt = c.now()
		finished = job.Clone()
		c.job = nil
		c.state = domain.JobStateIdle
	}
	snap := c.bumpLocked()
	c.mu.Unlock()

	if finished != nil {
		c.logger.Info().
			Str("job_id", finished.ID).
			Str("state", string(finished.State)).
			Str("error", finished.Error).
			Msg("controller: job finished")
		c.record(finished)
	}
	c.emit(snap)
}

func (c *Controller) record(job *domain.Job) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.Save(ctx, job); err != nil {
		c.logger.Error().Err(err).Str("job_id", job.ID).Msg("controller: record job history failed")
	}
}

func (c *Controller) stopSessionLocked() {
	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
}

// discardLocked drops the current job and invalidates in-flight work.
func (c *Controller) discardLocked() {
	c.stopSessionLocked()
	c.job = nil
	c.attempt++
}

func (c *Controller) setNoticeLocked(kind notice.Kind, detail string) {
	n := c.notices.Render(c.locale, kind, detail)
	c.notice = &n
}

func (c *Controller) bumpLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version: c.version,
		State:   c.state,
		Job:     c.job.Clone(),
	}
	if c.notice != nil {
		n := *c.notice
		snap.Notice = &n
	}
	return snap
}

func (c *Controller) emit(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
