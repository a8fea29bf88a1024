package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/repository"
	"github.com/ulugbekw/imtihon/internal/ws"
)

// DeadlineScheduler guarantees that every live test's window is closed at
// its end instant by the server clock, exactly once, regardless of how
// many clients are connected. One timer goroutine per live test, armed
// lazily on first access; firing broadcasts the force-end signal and runs
// the grader's close-out pass. A fired deadline is never re-armed.
type DeadlineScheduler interface {
	// EnsureArmed arms the test's deadline if it is inside its window and
	// has not fired yet. Safe to call on every access.
	EnsureArmed(test TimedTest)
	// Recover fires deadlines that passed while the process was down and
	// re-arms tests still inside their window.
	Recover() error
	// Shutdown stops pending timers and waits for in-flight close-outs.
	Shutdown()
}

// TimedTest is the slice of the test model the scheduler needs.
type TimedTest struct {
	ID        uint
	StartAt   time.Time
	EndAt     time.Time
	ClosedOut bool
}

type deadlineScheduler struct {
	testRepo repository.TestRepository
	grader   SubmissionGrader
	hub      *ws.Hub

	mu     sync.Mutex
	timers map[uint]*time.Timer
	fired  map[uint]bool
	wg     sync.WaitGroup
}

func NewDeadlineScheduler(testRepo repository.TestRepository, grader SubmissionGrader, hub *ws.Hub) DeadlineScheduler {
	return &deadlineScheduler{
		testRepo: testRepo,
		grader:   grader,
		hub:      hub,
		timers:   make(map[uint]*time.Timer),
		fired:    make(map[uint]bool),
	}
}

func (s *deadlineScheduler) EnsureArmed(test TimedTest) {
	if test.ClosedOut {
		s.mu.Lock()
		s.fired[test.ID] = true
		s.mu.Unlock()
		return
	}

	now := time.Now()
	switch ClassifyWindow(now, test.StartAt, test.EndAt) {
	case WindowUpcoming:
		// Armed on the first access after the window opens.
		return
	case WindowExpired:
		// The deadline passed without a close-out (e.g. nobody touched
		// the test at its end instant until now). Fire immediately.
		s.fireAsync(test.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired[test.ID] {
		return
	}
	if _, armed := s.timers[test.ID]; armed {
		return
	}

	delay := test.EndAt.Sub(now)
	testID := test.ID
	s.timers[testID] = time.AfterFunc(delay, func() { s.fire(testID) })
	log.Info().Uint("testID", testID).Dur("in", delay).Msg("scheduler: deadline armed")
}

func (s *deadlineScheduler) fireAsync(testID uint) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(testID)
	}()
}

func (s *deadlineScheduler) fire(testID uint) {
	s.mu.Lock()
	if s.fired[testID] {
		s.mu.Unlock()
		return
	}
	s.fired[testID] = true
	if t, ok := s.timers[testID]; ok {
		t.Stop()
		delete(s.timers, testID)
	}
	s.mu.Unlock()

	log.Info().Uint("testID", testID).Msg("scheduler: deadline fired")
	s.hub.Broadcast(testID, ws.Message{
		Type: ws.EventTestForceEnd,
		Data: map[string]uint{"test_id": testID},
	})

	if err := s.grader.CloseOut(testID); err != nil {
		// Left unmarked so a restart retries the close-out.
		log.Error().Err(err).Uint("testID", testID).Msg("scheduler: close-out pass failed")
		return
	}

	if err := s.testRepo.MarkClosedOut(testID, time.Now()); err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("scheduler: failed to record close-out marker")
	}
}

func (s *deadlineScheduler) Recover() error {
	now := time.Now()

	expired, err := s.testRepo.FindExpiredUnclosed(now)
	if err != nil {
		return fmt.Errorf("scanning for missed deadlines: %w", err)
	}
	for _, t := range expired {
		log.Warn().Uint("testID", t.ID).Time("endAt", t.EndAt).Msg("scheduler: recovering missed deadline")
		s.fire(t.ID)
	}

	active, err := s.testRepo.FindActiveUnclosed(now)
	if err != nil {
		return fmt.Errorf("scanning for live tests: %w", err)
	}
	for _, t := range active {
		s.EnsureArmed(TimedTest{ID: t.ID, StartAt: t.StartAt, EndAt: t.EndAt})
	}

	log.Info().Int("recovered", len(expired)).Int("rearmed", len(active)).Msg("scheduler: recovery complete")
	return nil
}

func (s *deadlineScheduler) Shutdown() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
