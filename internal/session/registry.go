package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/internal/jobclient"
)

// ErrRegistryClosed is returned by Create after Close.
var ErrRegistryClosed = errors.New("session registry closed")

// Factory builds the controller for a new session in the given locale.
type Factory func(locale string) (*jobclient.Controller, error)

// Entry is one browser session and its controller.
type Entry struct {
	ID         string
	Controller *jobclient.Controller
	CreatedAt  time.Time

	lastSeen time.Time
}

// Options configures a Registry.
type Options struct {
	Factory       Factory
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Logger        *infra.Logger
	Now           func() time.Time
}

// Registry keeps one controller per session and disposes sessions that
// were not accessed for IdleTTL.
type Registry struct {
	factory  Factory
	ttl      time.Duration
	interval time.Duration
	logger   *infra.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
	closed  bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewRegistry validates opts. The reaper only runs after Start.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Factory == nil {
		return nil, errors.New("session: factory is required")
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = ttl / 4
		if interval < time.Second {
			interval = time.Second
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		factory:  opts.Factory,
		ttl:      ttl,
		interval: interval,
		logger:   infra.Component(opts.Logger, "sessions"),
		now:      now,
		entries:  make(map[string]*Entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the idle reaper.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		go r.reap()
	})
}

func (r *Registry) reap() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Create registers a new session with a fresh controller.
func (r *Registry) Create(locale string) (*Entry, error) {
	ctrl, err := r.factory(locale)
	if err != nil {
		return nil, err
	}
	now := r.now()
	entry := &Entry{ID: uuid.NewString(), Controller: ctrl, CreatedAt: now, lastSeen: now}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		ctrl.Close()
		return nil, ErrRegistryClosed
	}
	r.entries[entry.ID] = entry
	size := len(r.entries)
	r.mu.Unlock()

	r.logger.Debug().Str("session_id", entry.ID).Int("sessions", size).Msg("session: created")
	return entry, nil
}

// Get returns the session and marks it as accessed.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry.lastSeen = r.now()
	return entry, nil
}

// Remove disposes the session's controller and forgets it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	entry.Controller.Close()
	r.logger.Debug().Str("session_id", id).Msg("session: removed")
	return nil
}

// Sweep disposes every session idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*Entry

	r.mu.Lock()
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range expired {
		entry.Controller.Close()
		r.logger.Info().
			Str("session_id", entry.ID).
			Str("state", string(entry.Controller.Snapshot().State)).
			Msg("session: disposed idle session")
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the reaper and disposes every controller.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	// A reaper that never started has nothing to wait for.
	r.startOnce.Do(func() { close(r.done) })
	<-r.done

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.closed = true
	r.mu.Unlock()

	for _, entry := range entries {
		entry.Controller.Close()
	}
	r.logger.Info().Int("sessions", len(entries)).Msg("session: registry closed")
}
