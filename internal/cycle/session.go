// Package cycle orchestrates one end-to-end monitoring run: acquisition,
// scoring, dedup, persistence, and notification, tracked as a session with
// strictly ordered phases.
package cycle

import (
	"fmt"
	"sync"
	"time"
)

// Status is the session lifecycle state; transitions are monotonic and a
// terminal status never changes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// Phase is the sub-state while running; each phase is reachable at most once
// per cycle and never observed out of order.
type Phase string

const (
	PhaseStarting      Phase = "starting"
	PhaseAcquiring     Phase = "acquiring"
	PhaseScoring       Phase = "scoring"
	PhaseDeduplicating Phase = "deduplicating"
	PhasePersisting    Phase = "persisting"
	PhaseNotifying     Phase = "notifying"
	PhaseCompleted     Phase = "completed"
)

var phaseOrder = map[Phase]int{
	PhaseStarting:      0,
	PhaseAcquiring:     1,
	PhaseScoring:       2,
	PhaseDeduplicating: 3,
	PhasePersisting:    4,
	PhaseNotifying:     5,
	PhaseCompleted:     6,
}

var phaseProgress = map[Phase]int{
	PhaseStarting:      5,
	PhaseAcquiring:     35,
	PhaseScoring:       60,
	PhaseDeduplicating: 75,
	PhasePersisting:    85,
	PhaseNotifying:     95,
	PhaseCompleted:     100,
}

// Progress maps a phase to the percentage reported to pollers.
func (p Phase) Progress() int { return phaseProgress[p] }

// Index returns the phase's position in the strict ordering.
func (p Phase) Index() int { return phaseOrder[p] }

// Counters accumulate per-stage item totals for one session
type Counters struct {
	Acquired     int `json:"acquired"`
	Scored       int `json:"scored"`
	Relevant     int `json:"relevant"`
	Deduplicated int `json:"deduplicated"`
	Alerted      int `json:"alerted"`
	Errors       int `json:"errors"`
	RateLimited  int `json:"rate_limited"` // Quota-exhaustion outcomes, not errors
}

// ErrorEntry is one appended error-log record
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Phase   Phase     `json:"phase"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Snapshot is the immutable view of a session handed to stores and pollers
type Snapshot struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Phase     Phase        `json:"phase"`
	Progress  int          `json:"progress"`
	Counters  Counters     `json:"counters"`
	ErrorLog  []ErrorEntry `json:"error_log"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at,omitempty"`
}

// Session is the mutable cycle record. All mutation goes through methods that
// enforce the monotonic status/phase rules; safe for concurrent observation.
type Session struct {
	mu        sync.Mutex
	id        string
	status    Status
	phase     Phase
	counters  Counters
	errorLog  []ErrorEntry
	startedAt time.Time
	endedAt   time.Time
	finalize  sync.Once
}

// NewSession creates a pending session.
func NewSession(id string) *Session {
	return &Session{id: id, status: StatusPending, phase: PhaseStarting}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start transitions pending → running and stamps the start time.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return
	}
	s.status = StatusRunning
	s.startedAt = time.Now()
}

// Advance moves to a later phase. Regressions and repeats are rejected so no
// poller ever observes phases out of order; terminal sessions never advance.
func (s *Session) Advance(p Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return fmt.Errorf("session %s is %s, cannot enter phase %s", s.id, s.status, p)
	}
	if p.Index() <= s.phase.Index() {
		return fmt.Errorf("session %s: phase %s does not follow %s", s.id, p, s.phase)
	}
	s.phase = p
	return nil
}

// AppendError adds one record to the append-only error log and bumps the
// error counter. Recoverable errors never change the session status.
func (s *Session) AppendError(phase Phase, kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLog = append(s.errorLog, ErrorEntry{
		At:      time.Now(),
		Phase:   phase,
		Kind:    kind,
		Message: err.Error(),
	})
	s.counters.Errors++
}

// Update applies a counter mutation under the session lock.
func (s *Session) Update(fn func(*Counters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.counters)
}

// Finalize moves the session to a terminal status exactly once. Later calls,
// including a completed-vs-timed-out race, are no-ops; the first terminal
// status wins.
func (s *Session) Finalize(status Status) bool {
	applied := false
	s.finalize.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.status = status
		s.endedAt = time.Now()
		if status == StatusCompleted {
			s.phase = PhaseCompleted
		}
		applied = true
	})
	return applied
}

// Terminal reports whether the session reached a terminal status.
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Terminal()
}

// Snapshot copies the current state for stores and pollers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := s.phase.Progress()
	if s.status == StatusPending {
		progress = 0
	}
	return Snapshot{
		ID:        s.id,
		Status:    s.status,
		Phase:     s.phase,
		Progress:  progress,
		Counters:  s.counters,
		ErrorLog:  append([]ErrorEntry(nil), s.errorLog...),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}
