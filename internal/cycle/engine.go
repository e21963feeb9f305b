package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/domain"
	"github.com/launchradar/launchradar/internal/scrape"
)

// SessionStore is the external CRUD collaborator for CycleSession records
type SessionStore interface {
	Create(ctx context.Context, snap Snapshot) error
	Update(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, id string) (Snapshot, error)
}

// AlertSink receives alert-worthy items; delivery guarantees are its problem
type AlertSink interface {
	Emit(ctx context.Context, item domain.ScoredItem)
}

// Acquirer is the acquisition coordinator surface
type Acquirer interface {
	Acquire(ctx context.Context, sources []domain.Source, entities []domain.Entity, progress scrape.ProgressFunc) scrape.Outcome
}

// Scorer produces the relevance verdict for one item
type Scorer interface {
	Score(item domain.CandidateItem) domain.ScoredItem
}

// Deduper flags items already seen in the recent window
type Deduper interface {
	IsDuplicate(item domain.CandidateItem) bool
}

// ProgressCallback receives every phase transition with a counter snapshot
type ProgressCallback func(phase Phase, counters Counters)

// Engine runs monitoring cycles. One Engine lives for the process; the dedup
// window and scraper state persist across its cycles.
type Engine struct {
	coordinator Acquirer
	scorer      Scorer
	dedup       Deduper
	store       SessionStore
	sink        AlertSink
}

// NewEngine wires a cycle engine.
func NewEngine(coordinator Acquirer, scorer Scorer, deduper Deduper, store SessionStore, sink AlertSink) *Engine {
	return &Engine{
		coordinator: coordinator,
		scorer:      scorer,
		dedup:       deduper,
		store:       store,
		sink:        sink,
	}
}

// RunCycle executes one monitoring cycle under a hard timeout and returns the
// alert-worthy items. A zero sessionID gets a generated one. Recoverable
// errors land in the session error log; only a timeout or an unexpected
// internal fault produces a terminal failure status.
func (e *Engine) RunCycle(ctx context.Context, sessionID string, sources []domain.Source, entities []domain.Entity, timeout time.Duration, cb ProgressCallback) (alerts []domain.ScoredItem, err error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if cb == nil {
		cb = func(Phase, Counters) {}
	}

	session := NewSession(sessionID)
	if cerr := e.store.Create(ctx, session.Snapshot()); cerr != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, cerr)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The watcher flips the session to timed_out the moment the deadline
	// fires, whatever phase is active. Finalize-once keeps the completed
	// path from overwriting it.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-runCtx.Done():
			if session.Finalize(StatusTimedOut) {
				session.AppendError(snapshotPhase(session), "SessionTimeout", domain.ErrSessionTimeout)
				e.persist(session)
			}
		case <-watcherDone:
		}
	}()

	// Any unexpected fault is terminal: failed status, full context logged.
	defer func() {
		if r := recover(); r != nil {
			fault := &domain.UnrecoverableError{Phase: string(snapshotPhase(session)), Err: fmt.Errorf("%v", r)}
			log.Error().Str("session", sessionID).Msg(fault.Error())
			session.AppendError(snapshotPhase(session), "UnrecoverableError", fault)
			session.Finalize(StatusFailed)
			e.persist(session)
			alerts, err = nil, fault
		}
	}()

	session.Start()
	cb(PhaseStarting, session.Snapshot().Counters)

	// Acquire
	e.transition(session, PhaseAcquiring, cb)
	outcome := e.coordinator.Acquire(runCtx, sources, entities, func(stage string, items int) {
		log.Debug().Str("session", sessionID).Str("stage", stage).Int("items", items).
			Msg("acquisition progress")
	})
	session.Update(func(c *Counters) {
		c.Acquired = len(outcome.Items)
		if outcome.RateLimited {
			c.RateLimited++
		}
	})
	for _, srcErr := range outcome.Errors {
		session.AppendError(PhaseAcquiring, errorKind(srcErr), srcErr)
	}

	// Score
	if !session.Terminal() {
		e.transition(session, PhaseScoring, cb)
	}
	var relevant []domain.ScoredItem
	for _, item := range outcome.Items {
		if session.Terminal() {
			break
		}
		scored := e.scorer.Score(item)
		session.Update(func(c *Counters) {
			c.Scored++
			if scored.Relevant {
				c.Relevant++
			}
		})
		if scored.Relevant {
			relevant = append(relevant, scored)
		}
	}

	// Dedup
	if !session.Terminal() {
		e.transition(session, PhaseDeduplicating, cb)
	}
	for _, scored := range relevant {
		if session.Terminal() {
			break
		}
		if e.dedup.IsDuplicate(scored.Item) {
			session.Update(func(c *Counters) { c.Deduplicated++ })
			continue
		}
		alerts = append(alerts, scored)
	}

	// Persist: always reached, so results computed before a timeout are
	// still written. Uses a fresh context for the same reason.
	if !session.Terminal() {
		e.transition(session, PhasePersisting, cb)
	}
	e.persist(session)

	// Notify
	timedOut := session.Terminal()
	if !timedOut {
		e.transition(session, PhaseNotifying, cb)
		for _, alert := range alerts {
			e.sink.Emit(runCtx, alert)
			session.Update(func(c *Counters) { c.Alerted++ })
		}
	}

	if session.Finalize(StatusCompleted) {
		cb(PhaseCompleted, session.Snapshot().Counters)
	}
	e.persist(session)

	snap := session.Snapshot()
	log.Info().Str("session", sessionID).Str("status", string(snap.Status)).
		Int("acquired", snap.Counters.Acquired).Int("alerted", snap.Counters.Alerted).
		Int("deduplicated", snap.Counters.Deduplicated).Int("errors", snap.Counters.Errors).
		Dur("elapsed", snap.EndedAt.Sub(snap.StartedAt)).Msg("cycle finished")

	if snap.Status == StatusTimedOut {
		return alerts, domain.ErrSessionTimeout
	}
	return alerts, nil
}

// transition advances the phase, notifies the callback, and persists the
// snapshot so pollers see fresh progress.
func (e *Engine) transition(session *Session, phase Phase, cb ProgressCallback) {
	if err := session.Advance(phase); err != nil {
		return
	}
	cb(phase, session.Snapshot().Counters)
	e.persist(session)
}

// persist writes the snapshot with its own deadline, detached from the cycle
// budget so a timed-out cycle can still record its partial results.
func (e *Engine) persist(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Update(ctx, session.Snapshot()); err != nil {
		log.Warn().Err(err).Str("session", session.ID()).Msg("session persist failed")
	}
}

func snapshotPhase(session *Session) Phase {
	return session.Snapshot().Phase
}

func errorKind(err error) string {
	switch err.(type) {
	case *domain.SourceFetchError:
		return "SourceFetchError"
	case *domain.ExtractionError:
		return "ExtractionError"
	default:
		return "Error"
	}
}
