package scheduler

import (
	"sort"
	"time"

	"github.com/endlessm/mogwai/internal/connmon"
	"github.com/endlessm/mogwai/internal/entry"
)

// reschedule recomputes the active set. Only called from the event loop
// goroutine; inReschedule guards against a reentrant call, which would
// indicate an observer callback looped back into the scheduler
// synchronously (a contract violation elsewhere in the code).
func (s *Scheduler) reschedule() {
	if s.inReschedule {
		panic("scheduler: reschedule called reentrantly")
	}
	s.inReschedule = true
	defer func() { s.inReschedule = false }()

	s.cancelAlarm()

	connIDs := s.conns.ConnectionIDs()
	details := make(map[string]connmon.ConnectionDetails, len(connIDs))
	allowDownloadsGlobal := true
	for _, id := range connIDs {
		d, ok := s.conns.ConnectionDetails(id)
		if !ok {
			// Vanished since ConnectionIDs was read; treat as default safe,
			// unmetered per the failure semantics in the design.
			s.log.Warn("connection details unavailable, treating connection as safe", "connection", id)
			d = connmon.ConnectionDetails{AllowDownloads: true, Metered: connmon.MeteredNo}
		}
		details[id] = d
		if !d.AllowDownloads {
			allowDownloadsGlobal = false
		}
	}

	changed := allowDownloadsGlobal != s.cachedAllowDownloads.Swap(allowDownloadsGlobal)

	if changed {
		for _, fn := range s.onAllowDownloadsChanged {
			fn(allowDownloadsGlobal)
		}
	}

	entries := s.entries.Snapshot()

	if len(entries) == 0 {
		return
	}

	now := s.clock.NowLocal()
	var (
		nextReschedule time.Time
		hasNext        bool
	)
	fold := func(t time.Time) {
		if !hasNext || t.Before(nextReschedule) {
			nextReschedule = t
			hasNext = true
		}
	}

	admissible := make([]entry.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if s.entryAdmissible(e, connIDs, details, now, fold) {
			admissible = append(admissible, e)
		}
	}

	ranked := s.rankEntries(admissible)

	maxActive := s.cfg.MaxActiveEntries
	if maxActive > len(ranked) {
		maxActive = len(ranked)
	}

	nowActiveSet := s.buildActiveSet(ranked, admissible, maxActive)

	s.applyActiveDiff(nowActiveSet)

	if hasNext {
		s.armAlarm(nextReschedule)
	}
}

// entryAdmissible reports whether every active connection is safe for e,
// folding each tariff-bearing connection's next transition into fold along
// the way.
func (s *Scheduler) entryAdmissible(
	e entry.ScheduleEntry,
	connIDs []string,
	details map[string]connmon.ConnectionDetails,
	now time.Time,
	fold func(time.Time),
) bool {
	admissible := true

	for _, id := range connIDs {
		d := details[id]

		if d.Tariff != nil {
			if next, ok := d.Tariff.NextTransition(now); ok {
				fold(next)
			}
		}

		if !connectionSafe(d, now) {
			admissible = false
		}
	}

	return admissible
}

// connectionSafe reports whether d permits downloading on this connection
// right now, independent of any particular entry.
func connectionSafe(d connmon.ConnectionDetails, now time.Time) bool {
	if !d.AllowDownloads {
		return false
	}
	if d.Metered != connmon.MeteredNo && d.Metered != connmon.MeteredGuessNo && !d.AllowDownloadsWhenMetered {
		return false
	}
	if d.Tariff != nil {
		if p, ok := d.Tariff.LookupPeriod(now); ok && p.Forbidden() {
			return false
		}
	}
	return true
}

// buildActiveSet fills up to maxActive slots, giving any id named in
// forcedOnce first claim (provided it is admissible) and filling the rest
// from the ranking order. forcedOnce is a one-shot override consumed here.
func (s *Scheduler) buildActiveSet(ranked []rankedEntry, admissible []entry.ScheduleEntry, maxActive int) map[string]bool {
	admissibleByID := make(map[string]bool, len(admissible))
	for _, e := range admissible {
		admissibleByID[e.ID] = true
	}

	forced := make([]string, 0, len(s.forcedOnce))
	for id := range s.forcedOnce {
		forced = append(forced, id)
	}
	sort.Strings(forced)
	s.forcedOnce = make(map[string]bool)

	nowActiveSet := make(map[string]bool, maxActive)
	for _, id := range forced {
		if len(nowActiveSet) >= maxActive {
			break
		}
		if admissibleByID[id] {
			nowActiveSet[id] = true
		}
	}
	for i := 0; i < len(ranked) && len(nowActiveSet) < maxActive; i++ {
		nowActiveSet[ranked[i].id] = true
	}

	return nowActiveSet
}

// applyActiveDiff updates is_active flags and emits active-entries-changed,
// removed before added so observers see a drain-then-fill transition.
func (s *Scheduler) applyActiveDiff(nowActiveSet map[string]bool) {
	var nowActive, noLongerActive []string
	type transition struct {
		id   string
		data entry.Data
	}
	var toUpdate []transition
	s.entriesData.Range(func(id string, data entry.Data) bool {
		wasActive := data.IsActive
		isActive := nowActiveSet[id]
		if wasActive == isActive {
			return true
		}
		data.IsActive = isActive
		toUpdate = append(toUpdate, transition{id: id, data: data})
		if isActive {
			nowActive = append(nowActive, id)
		} else {
			noLongerActive = append(noLongerActive, id)
		}
		return true
	})
	for _, t := range toUpdate {
		s.entriesData.Set(t.id, t.data)
	}

	if len(noLongerActive) > 0 {
		for _, fn := range s.onActiveEntriesChanged {
			fn(nil, noLongerActive)
		}
	}
	if len(nowActive) > 0 {
		for _, fn := range s.onActiveEntriesChanged {
			fn(nowActive, nil)
		}
	}
}

func (s *Scheduler) cancelAlarm() {
	if !s.hasAlarm {
		return
	}
	s.clock.RemoveAlarm(s.armedAlarm)
	s.hasAlarm = false
}

func (s *Scheduler) armAlarm(when time.Time) {
	s.armedAlarm = s.clock.AddAlarm(when, func(userdata any) {
		s.eventQueue <- rescheduleEvent{}
	}, nil)
	s.hasAlarm = true
}
