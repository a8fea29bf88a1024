package service

import (
	"errors"
	"testing"
	"time"

	"github.com/ulugbekw/imtihon/internal/model"
	"github.com/ulugbekw/imtihon/internal/ws"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSchedulerFiresOnceAtDeadline(t *testing.T) {
	now := time.Now()
	test := &model.Test{ID: 1, StartAt: now.Add(-time.Minute), EndAt: now.Add(50 * time.Millisecond)}
	testRepo := newFakeTestRepo(test)
	grader := &fakeGrader{}
	sched := NewDeadlineScheduler(testRepo, grader, ws.NewHub())
	defer sched.Shutdown()

	timed := TimedTest{ID: 1, StartAt: test.StartAt, EndAt: test.EndAt}
	// Every access re-arms; only one timer may result.
	sched.EnsureArmed(timed)
	sched.EnsureArmed(timed)
	sched.EnsureArmed(timed)

	waitFor(t, func() bool { return len(grader.closeOutCalls()) > 0 }, "deadline never fired")
	waitFor(t, func() bool { return testRepo.markedClosedOut(1) }, "close-out never recorded")

	// Late accesses after the fire must not re-arm.
	sched.EnsureArmed(timed)
	time.Sleep(50 * time.Millisecond)
	if calls := grader.closeOutCalls(); len(calls) != 1 {
		t.Errorf("close-out ran %d times, want 1", len(calls))
	}
}

func TestSchedulerExpiredTestFiresImmediately(t *testing.T) {
	now := time.Now()
	test := &model.Test{ID: 1, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour)}
	testRepo := newFakeTestRepo(test)
	grader := &fakeGrader{}
	sched := NewDeadlineScheduler(testRepo, grader, ws.NewHub())
	defer sched.Shutdown()

	sched.EnsureArmed(TimedTest{ID: 1, StartAt: test.StartAt, EndAt: test.EndAt})

	waitFor(t, func() bool { return len(grader.closeOutCalls()) == 1 }, "expired test never closed out")
}

func TestSchedulerUpcomingTestNotArmed(t *testing.T) {
	now := time.Now()
	grader := &fakeGrader{}
	sched := NewDeadlineScheduler(newFakeTestRepo(), grader, ws.NewHub())
	defer sched.Shutdown()

	sched.EnsureArmed(TimedTest{ID: 1, StartAt: now.Add(time.Hour), EndAt: now.Add(2 * time.Hour)})

	time.Sleep(50 * time.Millisecond)
	if len(grader.closeOutCalls()) != 0 {
		t.Error("upcoming test fired")
	}
}

func TestSchedulerClosedOutTestNeverRefires(t *testing.T) {
	now := time.Now()
	grader := &fakeGrader{}
	sched := NewDeadlineScheduler(newFakeTestRepo(), grader, ws.NewHub())
	defer sched.Shutdown()

	sched.EnsureArmed(TimedTest{ID: 1, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour), ClosedOut: true})

	time.Sleep(50 * time.Millisecond)
	if len(grader.closeOutCalls()) != 0 {
		t.Error("already closed-out test fired again")
	}
}

func TestSchedulerCloseOutFailureLeavesMarkerUnset(t *testing.T) {
	now := time.Now()
	test := &model.Test{ID: 1, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour)}
	testRepo := newFakeTestRepo(test)
	grader := &fakeGrader{err: errors.New("db unavailable")}
	sched := NewDeadlineScheduler(testRepo, grader, ws.NewHub())

	sched.EnsureArmed(TimedTest{ID: 1, StartAt: test.StartAt, EndAt: test.EndAt})
	sched.Shutdown()

	// The marker stays null so a restart retries the close-out.
	if testRepo.markedClosedOut(1) {
		t.Error("failed close-out was recorded as done")
	}
}

func TestSchedulerRecover(t *testing.T) {
	now := time.Now()
	closedAt := now.Add(-30 * time.Minute)
	missed := &model.Test{ID: 1, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour)}
	live := &model.Test{ID: 2, StartAt: now.Add(-time.Minute), EndAt: now.Add(60 * time.Millisecond)}
	done := &model.Test{ID: 3, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour), ClosedOutAt: &closedAt}
	testRepo := newFakeTestRepo(missed, live, done)
	grader := &fakeGrader{}
	sched := NewDeadlineScheduler(testRepo, grader, ws.NewHub())
	defer sched.Shutdown()

	if err := sched.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	// The missed deadline fires during recovery, the live one at its end
	// instant, the already closed one not at all.
	waitFor(t, func() bool { return testRepo.markedClosedOut(1) }, "missed deadline not recovered")
	waitFor(t, func() bool { return testRepo.markedClosedOut(2) }, "re-armed test never fired")

	calls := grader.closeOutCalls()
	for _, id := range calls {
		if id == 3 {
			t.Error("recovery re-fired an already closed-out test")
		}
	}
	if len(calls) != 2 {
		t.Errorf("close-out ran %d times, want 2", len(calls))
	}
}
