// Package clock provides the scheduler's time source: a small capability
// interface for "now" and one-shot alarms, a system-backed implementation,
// and a deterministic test double.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// AlarmID identifies a registered alarm so it can later be removed.
type AlarmID string

// AlarmCallback is invoked when an alarm fires. userdata is the opaque value
// passed to AddAlarm, returned unchanged.
type AlarmCallback func(userdata any)

// OffsetChangedFunc is invoked when the clock's time zone offset changes
// (e.g. a DST transition, or in DummyClock's case an explicit SetLocation).
type OffsetChangedFunc func()

// Clock abstracts "now" and alarm scheduling so the scheduler engine can be
// driven by a deterministic test double instead of the host clock.
type Clock interface {
	// NowLocal returns the current instant. Never returns the zero Time.
	NowLocal() time.Time

	// AddAlarm registers callback to fire at when. If when is already past,
	// the callback fires on the next cooperative dispatch tick rather than
	// synchronously, so callers are never reentered from inside AddAlarm.
	AddAlarm(when time.Time, callback AlarmCallback, userdata any) AlarmID

	// RemoveAlarm cancels a previously registered alarm. It is safe to call
	// even if the alarm has already fired or been removed.
	RemoveAlarm(id AlarmID)

	// OnOffsetChanged registers a callback invoked when the clock's
	// reporting time zone offset changes.
	OnOffsetChanged(fn OffsetChangedFunc)
}

func newAlarmID() AlarmID {
	return AlarmID(uuid.NewString())
}
