// Package runner owns live clustering sessions: it serializes access to
// each engine (the core does no locking) and drives the optional autoplay
// loop that steps a session until convergence.
package runner

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"web/kmeanslab/kmeans"
)

var (
	// ErrSessionNotFound: no session with the given ID.
	ErrSessionNotFound = errors.New("runner: session not found")

	// ErrAutoplayRunning: a manual mutation was attempted while the
	// autoplay loop owns the session. Stop autoplay first.
	ErrAutoplayRunning = errors.New("runner: autoplay is running")
)

// Session is one engine plus the lock that serializes every call into it.
type Session struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	engine   *kmeans.Engine
	autoplay bool
	log      *slog.Logger
}

// Runner manages sessions by ID, evicting the least recently used one
// when the configured maximum is exceeded.
type Runner struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	lastAccessed map[string]time.Time
	maxSessions  int
	log          *slog.Logger
}

func NewRunner(maxSessions int, log *slog.Logger) *Runner {
	if maxSessions <= 0 {
		maxSessions = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		sessions:     make(map[string]*Session),
		lastAccessed: make(map[string]time.Time),
		maxSessions:  maxSessions,
		log:          log,
	}
}

// Add registers an engine as a new session and returns it.
func (r *Runner) Add(engine *kmeans.Engine) *Session {
	s := &Session{
		ID:      uuid.New().String()[:8],
		Created: time.Now(),
		engine:  engine,
		log:     r.log,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	r.sessions[s.ID] = s
	r.lastAccessed[s.ID] = time.Now()
	r.log.Info("session created", "id", s.ID, "points", len(engine.Points()), "k", engine.K())
	return s
}

// Get returns the session with the given ID.
func (r *Runner) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.lastAccessed[id] = time.Now()
	return s, nil
}

// Remove stops and deletes a session.
func (r *Runner) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		delete(r.lastAccessed, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.StopAutoplay()
	return nil
}

// List returns a snapshot of all sessions, most recently used first.
func (r *Runner) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sessions))
	for id, s := range r.sessions {
		infos = append(infos, s.info(r.lastAccessed[id]))
	}
	sortInfos(infos)
	return infos
}

// evictLocked drops the least recently used session when at capacity.
// Caller holds r.mu.
func (r *Runner) evictLocked() {
	for len(r.sessions) >= r.maxSessions {
		var oldest string
		var oldestTime time.Time
		for id, at := range r.lastAccessed {
			if oldest == "" || at.Before(oldestTime) {
				oldest = id
				oldestTime = at
			}
		}
		if oldest == "" {
			return
		}
		if s := r.sessions[oldest]; s != nil {
			go s.StopAutoplay()
		}
		delete(r.sessions, oldest)
		delete(r.lastAccessed, oldest)
		r.log.Info("session evicted", "id", oldest)
	}
}

// Step advances the session one phase.
func (s *Session) Step() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoplay {
		return State{}, ErrAutoplayRunning
	}
	s.engine.Step()
	return s.stateLocked(), nil
}

// StepBack reverts the most recent step. The bool mirrors the engine: it
// is false when there was no history to pop.
func (s *Session) StepBack() (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoplay {
		return State{}, false, ErrAutoplayRunning
	}
	ok := s.engine.StepBack()
	return s.stateLocked(), ok, nil
}

// AddCentroid appends a random centroid.
func (s *Session) AddCentroid() (State, error) {
	return s.mutate(func(e *kmeans.Engine) error { return e.AddCentroid() })
}

// AddCentroidAt appends a centroid at the given position.
func (s *Session) AddCentroidAt(p kmeans.Point) (State, error) {
	return s.mutate(func(e *kmeans.Engine) error { return e.AddCentroidAt(p) })
}

// DeleteCentroid removes the centroid at index.
func (s *Session) DeleteCentroid(index int) (State, error) {
	return s.mutate(func(e *kmeans.Engine) error { return e.DeleteCentroid(index) })
}

// MoveCentroid repositions the centroid at index.
func (s *Session) MoveCentroid(index int, p kmeans.Point) (State, error) {
	return s.mutate(func(e *kmeans.Engine) error { return e.MoveCentroid(index, p) })
}

// SetCentroidCount resizes to exactly k centroids.
func (s *Session) SetCentroidCount(k int) (State, error) {
	return s.mutate(func(e *kmeans.Engine) error { return e.SetCentroidCount(k) })
}

func (s *Session) mutate(op func(*kmeans.Engine) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoplay {
		return State{}, ErrAutoplayRunning
	}
	if err := op(s.engine); err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// WithEngine runs f with exclusive access to the engine. Used for
// save/load, plotting and export, which need more than the State snapshot.
func (s *Session) WithEngine(f func(*kmeans.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.engine)
}

// StartAutoplay steps the session at the given interval until convergence
// or StopAutoplay. Manual mutations are refused while it runs. Returns
// false if autoplay was already running.
func (s *Session) StartAutoplay(interval time.Duration) bool {
	s.mu.Lock()
	if s.autoplay {
		s.mu.Unlock()
		return false
	}
	s.autoplay = true
	s.mu.Unlock()

	go s.autoplayLoop(interval)
	return true
}

// StopAutoplay flips the cooperative flag; the loop exits after the step
// in flight, if any, plus one inter-step delay.
func (s *Session) StopAutoplay() {
	s.mu.Lock()
	s.autoplay = false
	s.mu.Unlock()
}

// AutoplayRunning reports whether the autoplay loop is active.
func (s *Session) AutoplayRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoplay
}

func (s *Session) autoplayLoop(interval time.Duration) {
	s.log.Info("autoplay started", "id", s.ID, "interval", interval)
	for {
		s.mu.Lock()
		if !s.autoplay || s.engine.Converged() {
			s.autoplay = false
			converged := s.engine.Converged()
			s.mu.Unlock()
			s.log.Info("autoplay stopped", "id", s.ID, "converged", converged)
			return
		}
		s.engine.Step()
		s.mu.Unlock()
		time.Sleep(interval)
	}
}
