package clock

import (
	"sort"
	"time"
)

type dummyAlarm struct {
	id       AlarmID
	when     time.Time
	callback AlarmCallback
	userdata any
}

// DummyClock is a programmatically driven Clock for tests. Advancing its
// "now" via SetNow fires any alarms whose trigger time has passed, in
// trigger order, re-reading the alarm set before each callback so that a
// callback which adds or removes alarms is handled correctly.
type DummyClock struct {
	now    time.Time
	loc    *time.Location
	alarms map[AlarmID]*dummyAlarm

	offsetChanged []OffsetChangedFunc
}

// NewDummyClock returns a DummyClock initialized to now in time.UTC.
func NewDummyClock(now time.Time) *DummyClock {
	return &DummyClock{
		now:    now,
		loc:    time.UTC,
		alarms: make(map[AlarmID]*dummyAlarm),
	}
}

func (c *DummyClock) NowLocal() time.Time {
	return c.now.In(c.loc)
}

func (c *DummyClock) AddAlarm(when time.Time, callback AlarmCallback, userdata any) AlarmID {
	id := newAlarmID()
	c.alarms[id] = &dummyAlarm{id: id, when: when, callback: callback, userdata: userdata}
	return id
}

func (c *DummyClock) RemoveAlarm(id AlarmID) {
	delete(c.alarms, id)
}

func (c *DummyClock) OnOffsetChanged(fn OffsetChangedFunc) {
	c.offsetChanged = append(c.offsetChanged, fn)
}

// SetNow advances the clock to now, firing every alarm due at or before now
// in trigger order. The alarm set is re-read before each fire, so a
// callback that removes or adds alarms sees a consistent view.
func (c *DummyClock) SetNow(now time.Time) {
	c.now = now

	for {
		due := c.nextDueAlarm()
		if due == nil {
			return
		}
		delete(c.alarms, due.id)
		due.callback(due.userdata)
	}
}

func (c *DummyClock) nextDueAlarm() *dummyAlarm {
	var due []*dummyAlarm
	for _, a := range c.alarms {
		if !a.when.After(c.now) {
			due = append(due, a)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	return due[0]
}

// SetLocation changes the clock's reporting location, firing registered
// OnOffsetChanged callbacks.
func (c *DummyClock) SetLocation(loc *time.Location) {
	c.loc = loc
	for _, fn := range c.offsetChanged {
		fn()
	}
}

// PendingAlarms reports how many alarms are currently armed, for test
// assertions.
func (c *DummyClock) PendingAlarms() int {
	return len(c.alarms)
}
