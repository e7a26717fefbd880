package clock

import (
	"sync"
	"time"
)

// SystemClock reports wall-clock time from the host and arms alarms with
// time.AfterFunc. Alarm callbacks always run on a timer goroutine, never on
// the caller's stack, satisfying the "not synchronous" requirement for
// already-past alarms.
type SystemClock struct {
	mu             sync.Mutex
	timers         map[AlarmID]*time.Timer
	offsetChanged  []OffsetChangedFunc
	lastOffsetName string
	stopPoll       chan struct{}
}

// NewSystemClock returns a SystemClock that polls the host's time zone
// offset name periodically and fires OnOffsetChanged callbacks when it
// changes (e.g. a DST transition).
func NewSystemClock() *SystemClock {
	c := &SystemClock{
		timers:   make(map[AlarmID]*time.Timer),
		stopPoll: make(chan struct{}),
	}
	_, name := time.Now().Zone()
	c.lastOffsetName = name

	go c.pollOffset()

	return c
}

func (c *SystemClock) pollOffset() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPoll:
			return
		case <-ticker.C:
			_, name := time.Now().Zone()

			c.mu.Lock()
			changed := name != c.lastOffsetName
			c.lastOffsetName = name
			callbacks := append([]OffsetChangedFunc(nil), c.offsetChanged...)
			c.mu.Unlock()

			if changed {
				for _, fn := range callbacks {
					fn()
				}
			}
		}
	}
}

// Close stops the background offset-polling goroutine.
func (c *SystemClock) Close() {
	close(c.stopPoll)
}

func (c *SystemClock) NowLocal() time.Time {
	return time.Now()
}

func (c *SystemClock) AddAlarm(when time.Time, callback AlarmCallback, userdata any) AlarmID {
	id := newAlarmID()
	delay := time.Until(when)
	if delay < 0 {
		delay = 0
	}

	timer := time.AfterFunc(delay, func() {
		callback(userdata)

		c.mu.Lock()
		delete(c.timers, id)
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.timers[id] = timer
	c.mu.Unlock()

	return id
}

func (c *SystemClock) RemoveAlarm(id AlarmID) {
	c.mu.Lock()
	timer, ok := c.timers[id]
	if ok {
		delete(c.timers, id)
	}
	c.mu.Unlock()

	if ok {
		timer.Stop()
	}
}

func (c *SystemClock) OnOffsetChanged(fn OffsetChangedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsetChanged = append(c.offsetChanged, fn)
}
