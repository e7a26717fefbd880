// Package scheduler implements mogwaid's core decision engine: it holds
// the set of registered schedule entries, ranks them, and decides which
// may proceed given the current network connections, tariffs, and
// configured concurrency cap.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/endlessm/mogwai/internal/clock"
	"github.com/endlessm/mogwai/internal/connmon"
	"github.com/endlessm/mogwai/internal/entry"
	"github.com/endlessm/mogwai/internal/errs"
	"github.com/endlessm/mogwai/internal/peermgr"
	"github.com/endlessm/mogwai/pkg/syncmap"
)

// EntriesChangedFunc is invoked when UpdateEntries actually changes the
// entry set (never called with two empty slices).
type EntriesChangedFunc func(added []entry.ScheduleEntry, removed []string)

// ActiveEntriesChangedFunc is invoked when the active set changes.
type ActiveEntriesChangedFunc func(nowActive, noLongerActive []string)

// AllowDownloadsChangedFunc is invoked when the cached allow-downloads
// property changes.
type AllowDownloadsChangedFunc func(allowed bool)

// Config holds the scheduler's tunables. Callers typically source these
// from internal/config's global store.
type Config struct {
	MaxEntries       int
	MaxActiveEntries int

	// PrivilegedPeerExecutables names executables whose owning peers get
	// maximum peer priority in ranking (see rank.go).
	PrivilegedPeerExecutables []string
}

// event is the scheduler's single internal message type, delivered through
// its event loop so that every state mutation happens on one goroutine.
type event interface{ isEvent() }

type rescheduleEvent struct{}

func (rescheduleEvent) isEvent() {}

type updateEntriesEvent struct {
	added   []entry.ScheduleEntry
	removed []string
	result  chan error
}

func (updateEntriesEvent) isEvent() {}

type peerVanishedEvent struct{ peerID string }

func (peerVanishedEvent) isEvent() {}

type forceActiveEvent struct {
	id     string
	result chan error
}

func (forceActiveEvent) isEvent() {}

// Scheduler is the central coordinator described in the system design: a
// single event-loop goroutine owns the entry set and reacts to collaborator
// signals and API calls delivered over eventQueue. Fields touched only from
// within Run are safe without locking; the entry tables are syncmap.Maps and
// cachedAllowDownloads is an atomic.Bool, so AllowDownloads and the read
// accessors may be called from other goroutines (e.g. the bus layer
// answering a property read concurrently with the loop).
type Scheduler struct {
	log *slog.Logger
	cfg Config

	clock clock.Clock
	conns connmon.Monitor
	peers peermgr.Manager

	eventQueue chan event

	entries              *syncmap.Map[string, entry.ScheduleEntry]
	entriesData          *syncmap.Map[string, entry.Data]
	cachedAllowDownloads atomic.Bool

	// ctx is the Run context, stashed so credential resolution goroutines
	// spawned from the event loop (see resolvePeerCredentialsAsync) can
	// respect shutdown. Set once, before the event loop starts; never
	// written again.
	ctx context.Context

	inReschedule bool
	armedAlarm   clock.AlarmID
	hasAlarm     bool
	forcedOnce   map[string]bool

	onEntriesChanged        []EntriesChangedFunc
	onActiveEntriesChanged  []ActiveEntriesChangedFunc
	onAllowDownloadsChanged []AllowDownloadsChangedFunc
}

// New constructs a Scheduler and subscribes to its collaborators' signals.
func New(log *slog.Logger, cfg Config, c clock.Clock, conns connmon.Monitor, peers peermgr.Manager) *Scheduler {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.MaxActiveEntries <= 0 {
		cfg.MaxActiveEntries = 1
	}

	s := &Scheduler{
		log:         log.With("component", "scheduler"),
		cfg:         cfg,
		clock:       c,
		conns:       conns,
		peers:       peers,
		eventQueue:  make(chan event, 256),
		entries:     syncmap.New[string, entry.ScheduleEntry](),
		entriesData: syncmap.New[string, entry.Data](),
		forcedOnce:  make(map[string]bool),
	}
	s.cachedAllowDownloads.Store(true)

	conns.OnConnectionsChanged(func(added, removed []string) {
		s.eventQueue <- rescheduleEvent{}
	})
	conns.OnConnectionDetailsChanged(func(id string) {
		s.eventQueue <- rescheduleEvent{}
	})
	peers.OnPeerVanished(func(peerID string) {
		s.eventQueue <- peerVanishedEvent{peerID: peerID}
	})
	c.OnOffsetChanged(func() {
		s.eventQueue <- rescheduleEvent{}
	})

	return s
}

// Run drives the scheduler's event loop until ctx is canceled. It must run
// on its own goroutine; every public mutation method funnels through
// eventQueue so all state changes happen here.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.log.Debug("scheduler event loop started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutting down", "reason", ctx.Err())
			return nil

		case ev, ok := <-s.eventQueue:
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Scheduler) handleEvent(ev event) {
	switch e := ev.(type) {
	case rescheduleEvent:
		s.reschedule()

	case updateEntriesEvent:
		err := s.updateEntries(e.added, e.removed)
		if e.result != nil {
			e.result <- err
		}

	case peerVanishedEvent:
		if err := s.removeEntriesForOwner(e.peerID); err != nil {
			s.log.Warn("remove_entries_for_owner failed on peer vanish", "peer", e.peerID, "error", err)
		}

	case forceActiveEvent:
		e.result <- s.forceActiveOnce(e.id)

	default:
		s.log.Warn("unknown scheduler event", "event", e)
	}
}

// UpdateEntries atomically adds and removes entries. It blocks until the
// event loop has applied the change (or rejected it with ErrFull), mirroring
// the synchronous contract of the design's update_entries operation.
func (s *Scheduler) UpdateEntries(added []entry.ScheduleEntry, removed []string) error {
	result := make(chan error, 1)
	s.eventQueue <- updateEntriesEvent{added: added, removed: removed, result: result}
	return <-result
}

// ForceActiveOnce requests that id win a slot in the active set on the very
// next reschedule pass, ahead of its ranked position, provided it is still
// admissible. The override does not survive past that one pass and never
// raises max_active_entries. It returns ErrUnknownEntry if id is not
// currently registered.
func (s *Scheduler) ForceActiveOnce(id string) error {
	result := make(chan error, 1)
	s.eventQueue <- forceActiveEvent{id: id, result: result}
	return <-result
}

func (s *Scheduler) forceActiveOnce(id string) error {
	if _, exists := s.entries.Get(id); !exists {
		return errs.ErrUnknownEntry
	}

	s.forcedOnce[id] = true
	s.reschedule()
	return nil
}

// RemoveEntriesForOwner removes every entry owned by owner.
func (s *Scheduler) RemoveEntriesForOwner(owner string) error {
	ids := s.entryIDsForOwner(owner)
	return s.UpdateEntries(nil, ids)
}

func (s *Scheduler) entryIDsForOwner(owner string) []string {
	var ids []string
	s.entries.Range(func(id string, e entry.ScheduleEntry) bool {
		if e.Owner == owner {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// GetEntry returns a copy of the entry with id, if present.
func (s *Scheduler) GetEntry(id string) (entry.ScheduleEntry, bool) {
	return s.entries.Get(id)
}

// GetEntries returns copies of all currently registered entries.
func (s *Scheduler) GetEntries() []entry.ScheduleEntry {
	return s.entries.Snapshot()
}

// IsEntryActive reports whether id is currently in the active set.
func (s *Scheduler) IsEntryActive(id string) bool {
	data, _ := s.entriesData.Get(id)
	return data.IsActive
}

// AllowDownloads returns the cached "every active connection allows
// downloads" property (true when there are no connections).
func (s *Scheduler) AllowDownloads() bool {
	return s.cachedAllowDownloads.Load()
}

// Reschedule requests an out-of-band recomputation, the same one collaborator
// signals trigger internally.
func (s *Scheduler) Reschedule() {
	s.eventQueue <- rescheduleEvent{}
}

func (s *Scheduler) OnEntriesChanged(fn EntriesChangedFunc) {
	s.onEntriesChanged = append(s.onEntriesChanged, fn)
}

func (s *Scheduler) OnActiveEntriesChanged(fn ActiveEntriesChangedFunc) {
	s.onActiveEntriesChanged = append(s.onActiveEntriesChanged, fn)
}

func (s *Scheduler) OnAllowDownloadsChanged(fn AllowDownloadsChangedFunc) {
	s.onAllowDownloadsChanged = append(s.onAllowDownloadsChanged, fn)
}

// updateEntries performs the batch add/remove. Only called from the event
// loop goroutine.
func (s *Scheduler) updateEntries(added []entry.ScheduleEntry, removed []string) error {
	actualRemoved := make([]string, 0, len(removed))
	for _, id := range removed {
		if _, exists := s.entries.Get(id); exists {
			actualRemoved = append(actualRemoved, id)
		}
	}

	actualAdded := make([]entry.ScheduleEntry, 0, len(added))
	for _, e := range added {
		if _, exists := s.entries.Get(e.ID); !exists {
			actualAdded = append(actualAdded, e)
		}
	}

	// The cap applies to the count after both sides of the batch are
	// applied, not to len(entries)+len(added): an update that removes as
	// many entries as it adds must not spuriously report Full.
	finalCount := s.entries.Len() - len(actualRemoved) + len(actualAdded)
	if finalCount > s.cfg.MaxEntries {
		return errs.ErrFull
	}

	evictedActive := make([]string, 0)
	for _, id := range actualRemoved {
		if data, _ := s.entriesData.Get(id); data.IsActive {
			evictedActive = append(evictedActive, id)
		}
		s.entries.Delete(id)
		s.entriesData.Delete(id)
	}

	for _, e := range actualAdded {
		s.entries.Set(e.ID, e)
		s.entriesData.Set(e.ID, entry.Data{})
	}

	if len(actualAdded) == 0 && len(actualRemoved) == 0 {
		return nil
	}

	s.resolvePeerCredentialsAsync(actualAdded)

	for _, fn := range s.onEntriesChanged {
		fn(actualAdded, actualRemoved)
	}

	if len(evictedActive) > 0 {
		for _, fn := range s.onActiveEntriesChanged {
			fn(nil, evictedActive)
		}
	}

	s.reschedule()
	return nil
}

// resolvePeerCredentialsAsync kicks off credential resolution for each
// newly admitted entry's owner not already in the synchronous cache that
// rankEntries consults. Resolution runs off the event loop goroutine
// because EnsurePeerCredentials may block on a retry budget; the loop
// triggers a reschedule once a credential lands so ranking picks up the
// owner's real identity (and any privileged-executable boost) without
// waiting on the next unrelated event.
func (s *Scheduler) resolvePeerCredentialsAsync(added []entry.ScheduleEntry) {
	seen := make(map[string]bool, len(added))
	for _, e := range added {
		owner := e.Owner
		if seen[owner] {
			continue
		}
		seen[owner] = true

		if _, ok := s.peers.PeerCredentials(owner); ok {
			continue
		}

		go func() {
			if _, err := s.peers.EnsurePeerCredentials(s.ctx, owner); err != nil {
				s.log.Warn("failed to resolve peer credentials", "owner", owner, "error", err)
				return
			}
			s.Reschedule()
		}()
	}
}

func (s *Scheduler) removeEntriesForOwner(owner string) error {
	ids := s.entryIDsForOwner(owner)
	if len(ids) == 0 {
		return nil
	}
	return s.updateEntries(nil, ids)
}
