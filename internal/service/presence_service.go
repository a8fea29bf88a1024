package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/repository"
	"github.com/ulugbekw/imtihon/internal/ws"
	"gorm.io/gorm"
)

// PresenceTracker maintains the set of currently connected participants
// per live test, keyed by user id so a reconnect replaces rather than
// duplicates the entry. Presence is observational telemetry for teacher
// dashboards only; it has no bearing on grading.
type PresenceTracker interface {
	// Join registers the participant and notifies observers. Fails with
	// ErrTestNotActive outside the live window.
	Join(testID, userID uint, displayName string) error
	// Leave removes the entry and notifies observers. Leaving twice, or
	// leaving before a reordered join arrived, is a no-op.
	Leave(testID, userID uint)
	// Snapshot returns the current presence set, for observers attaching
	// mid-session.
	Snapshot(testID uint) []dto.PresenceEntryDTO
	// Members returns the connected user ids, for the deadline close-out
	// roster.
	Members(testID uint) []uint
}

type presenceEntry struct {
	userID      uint
	displayName string
	joinedAt    time.Time
}

type testPresence struct {
	mu      sync.Mutex
	entries map[uint]presenceEntry
}

type presenceTracker struct {
	testRepo repository.TestRepository
	hub      *ws.Hub

	// mu guards the bucket map only; each test has its own lock so
	// unrelated tests never serialize against each other.
	mu    sync.Mutex
	tests map[uint]*testPresence
}

func NewPresenceTracker(testRepo repository.TestRepository, hub *ws.Hub) PresenceTracker {
	return &presenceTracker{
		testRepo: testRepo,
		hub:      hub,
		tests:    make(map[uint]*testPresence),
	}
}

func (p *presenceTracker) bucket(testID uint, create bool) *testPresence {
	p.mu.Lock()
	defer p.mu.Unlock()
	tp, ok := p.tests[testID]
	if !ok && create {
		tp = &testPresence{entries: make(map[uint]presenceEntry)}
		p.tests[testID] = tp
	}
	return tp
}

func (p *presenceTracker) Join(testID, userID uint, displayName string) error {
	test, err := p.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTestNotFound
		}
		return fmt.Errorf("loading test %d for join: %w", testID, err)
	}

	if ClassifyWindow(time.Now(), test.StartAt, test.EndAt) != WindowActive {
		return ErrTestNotActive
	}

	now := time.Now()
	tp := p.bucket(testID, true)
	tp.mu.Lock()
	tp.entries[userID] = presenceEntry{userID: userID, displayName: displayName, joinedAt: now}
	tp.mu.Unlock()

	log.Info().Uint("testID", testID).Uint("userID", userID).Msg("presence: participant joined")
	p.hub.Broadcast(testID, ws.Message{
		Type: ws.EventParticipantJoined,
		Data: dto.PresenceEntryDTO{UserID: userID, DisplayName: displayName, JoinedAt: now},
	})
	return nil
}

func (p *presenceTracker) Leave(testID, userID uint) {
	tp := p.bucket(testID, false)
	if tp == nil {
		return
	}

	tp.mu.Lock()
	_, present := tp.entries[userID]
	delete(tp.entries, userID)
	tp.mu.Unlock()

	// Empty buckets are kept: a concurrent Join may already hold a
	// reference to this bucket, and unlinking it would lose that entry.

	// A leave without a matching join (reordered delivery) is already
	// absent; nothing to announce.
	if !present {
		return
	}

	log.Info().Uint("testID", testID).Uint("userID", userID).Msg("presence: participant left")
	p.hub.Broadcast(testID, ws.Message{
		Type: ws.EventParticipantLeft,
		Data: dto.PresenceEntryDTO{UserID: userID},
	})
}

func (p *presenceTracker) Snapshot(testID uint) []dto.PresenceEntryDTO {
	tp := p.bucket(testID, false)
	if tp == nil {
		return []dto.PresenceEntryDTO{}
	}

	tp.mu.Lock()
	entries := make([]presenceEntry, 0, len(tp.entries))
	for _, e := range tp.entries {
		entries = append(entries, e)
	}
	tp.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].joinedAt.Before(entries[j].joinedAt) })

	out := make([]dto.PresenceEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = dto.PresenceEntryDTO{UserID: e.userID, DisplayName: e.displayName, JoinedAt: e.joinedAt}
	}
	return out
}

func (p *presenceTracker) Members(testID uint) []uint {
	tp := p.bucket(testID, false)
	if tp == nil {
		return nil
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	ids := make([]uint, 0, len(tp.entries))
	for id := range tp.entries {
		ids = append(ids, id)
	}
	return ids
}
