package clock

import (
	"testing"
	"time"
)

func TestDummyClock_FiresDueAlarmsInOrder(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDummyClock(base)

	var fired []string
	c.AddAlarm(base.Add(2*time.Hour), func(userdata any) {
		fired = append(fired, userdata.(string))
	}, "second")
	c.AddAlarm(base.Add(1*time.Hour), func(userdata any) {
		fired = append(fired, userdata.(string))
	}, "first")
	c.AddAlarm(base.Add(5*time.Hour), func(userdata any) {
		fired = append(fired, userdata.(string))
	}, "too-late")

	c.SetNow(base.Add(3 * time.Hour))

	if len(fired) != 2 || fired[0] != "first" || fired[1] != "second" {
		t.Fatalf("fired = %v, want [first second]", fired)
	}
	if c.PendingAlarms() != 1 {
		t.Errorf("PendingAlarms() = %d, want 1", c.PendingAlarms())
	}
}

func TestDummyClock_CallbackMutatingAlarmsIsHandled(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDummyClock(base)

	var fired []string
	c.AddAlarm(base.Add(time.Hour), func(userdata any) {
		fired = append(fired, "first")
		c.AddAlarm(base.Add(90*time.Minute), func(userdata any) {
			fired = append(fired, "added-during-callback")
		}, nil)
	}, nil)

	c.SetNow(base.Add(2 * time.Hour))

	if len(fired) != 2 || fired[1] != "added-during-callback" {
		t.Fatalf("fired = %v, want [first added-during-callback]", fired)
	}
}

func TestDummyClock_RemoveAlarmBeforeFire(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDummyClock(base)

	called := false
	id := c.AddAlarm(base.Add(time.Hour), func(userdata any) { called = true }, nil)
	c.RemoveAlarm(id)

	c.SetNow(base.Add(2 * time.Hour))

	if called {
		t.Errorf("removed alarm fired")
	}
}

func TestDummyClock_SetLocationNotifiesOffsetChanged(t *testing.T) {
	c := NewDummyClock(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	notified := false
	c.OnOffsetChanged(func() { notified = true })

	c.SetLocation(time.FixedZone("TEST", 3600))
	if !notified {
		t.Errorf("OnOffsetChanged callback not invoked")
	}
}
