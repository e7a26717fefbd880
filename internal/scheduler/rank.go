package scheduler

import (
	"hash/fnv"

	"github.com/endlessm/mogwai/internal/entry"
	"github.com/endlessm/mogwai/pkg/utils/heap"
	"github.com/samber/lo"
)

type peerPriority uint64

const (
	peerPriorityMin peerPriority = 0
	peerPriorityMax peerPriority = ^peerPriority(0)
)

// getPeerPriority ranks a peer by its resolved executable credential: the
// configured privileged executables (the OS updater and the app installer,
// by default) get maximum priority; every other known credential hashes
// deterministically into (min, max); an unresolved credential is treated as
// minimum priority so it never outranks a peer we could positively identify.
func (s *Scheduler) getPeerPriority(owner string) peerPriority {
	cred, ok := s.peers.PeerCredentials(owner)
	if !ok {
		return peerPriorityMin
	}

	if lo.Contains(s.cfg.PrivilegedPeerExecutables, cred) {
		return peerPriorityMax
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(cred))
	sum := peerPriority(h.Sum64())

	// Clamp away from the extremes so an unlucky hash can't collide with a
	// privileged peer's priority or with the "unresolved" floor.
	if sum == peerPriorityMin {
		sum++
	}
	if sum == peerPriorityMax {
		sum--
	}
	return sum
}

// rankedEntry pairs an admissible entry with its precomputed rank keys.
type rankedEntry struct {
	id       string
	priority peerPriority
	entry    entry.ScheduleEntry
}

// rankLess reports whether a outranks b: higher peer priority first, then
// higher per-entry priority, then ascending id as the final tie-break.
func rankLess(a, b rankedEntry) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.entry.Priority != b.entry.Priority {
		return a.entry.Priority > b.entry.Priority
	}
	return a.id < b.id
}

// rankEntries orders admissible entries highest-first by peer priority,
// then per-entry priority, then entry id, by draining a priority queue
// built from rankLess.
func (s *Scheduler) rankEntries(admissible []entry.ScheduleEntry) []rankedEntry {
	unranked := lo.Map(admissible, func(e entry.ScheduleEntry, _ int) rankedEntry {
		return rankedEntry{id: e.ID, priority: s.getPeerPriority(e.Owner), entry: e}
	})

	pq := heap.NewPriorityQueue(rankLess)
	for _, r := range unranked {
		pq.Enqueue(r)
	}

	ranked := make([]rankedEntry, 0, len(unranked))
	for {
		r, ok := pq.Dequeue()
		if !ok {
			break
		}
		ranked = append(ranked, r)
	}

	return ranked
}
