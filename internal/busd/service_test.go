package busd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/endlessm/mogwai/internal/clock"
	"github.com/endlessm/mogwai/internal/connmon"
	"github.com/endlessm/mogwai/internal/errs"
	"github.com/endlessm/mogwai/internal/peermgr"
	"github.com/endlessm/mogwai/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *scheduler.Scheduler, *connmon.StaticMonitor) {
	t.Helper()

	cl := clock.NewDummyClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	conns := connmon.NewStaticMonitor()
	conns.SetConnection("conn0", connmon.ConnectionDetails{
		Metered:        connmon.MeteredGuessNo,
		AllowDownloads: true,
	})
	peers := peermgr.NewStaticManager()

	sched := scheduler.New(testLogger(), scheduler.Config{MaxEntries: 10, MaxActiveEntries: 1}, cl, conns, peers)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sched.Run(ctx)

	svc := NewService(testLogger(), sched, nil)
	return svc, sched, conns
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestService_ScheduleAndRemove(t *testing.T) {
	svc, sched, _ := newTestService(t)

	if err := svc.Schedule("dl-1", 0, true, dbus.Sender("peer-a")); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	waitFor(t, time.Second, func() bool {
		_, ok := sched.GetEntry("dl-1")
		return ok
	})

	if err := svc.Remove("dl-1", dbus.Sender("peer-b")); err == nil {
		t.Fatalf("Remove() by non-owner succeeded, want error")
	} else if err.Name != errs.WireCode(errs.ErrUnknownEntry) {
		t.Errorf("Remove() by non-owner error name = %q, want %q", err.Name, errs.WireCode(errs.ErrUnknownEntry))
	}

	if err := svc.Remove("dl-1", dbus.Sender("peer-a")); err != nil {
		t.Fatalf("Remove() by owner error = %v", err)
	}

	waitFor(t, time.Second, func() bool {
		_, ok := sched.GetEntry("dl-1")
		return !ok
	})
}

func TestService_ScheduleEntries_AllOrNothing(t *testing.T) {
	svc, sched, _ := newTestService(t)

	if err := svc.Schedule("dl-1", 0, true, dbus.Sender("peer-a")); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	waitFor(t, time.Second, func() bool {
		_, ok := sched.GetEntry("dl-1")
		return ok
	})

	reqs := make([]EntryRequest, 0, 15)
	for i := 0; i < 15; i++ {
		reqs = append(reqs, EntryRequest{ID: string(rune('a' + i)), Priority: 0, Resumable: false})
	}

	err := svc.ScheduleEntries(reqs, dbus.Sender("peer-a"))
	if err == nil || err.Name != errs.WireCode(errs.ErrFull) {
		t.Fatalf("ScheduleEntries() error = %v, want Error.Full", err)
	}

	if got := len(sched.GetEntries()); got != 1 {
		t.Errorf("entry count after rejected batch = %d, want 1 (unchanged)", got)
	}
}

func TestService_HoldRelease_DrivesIdle(t *testing.T) {
	svc, _, _ := newTestService(t)

	var idleCount int
	svc.OnIdle(func() { idleCount++ })

	if err := svc.Hold(); err != nil {
		t.Fatalf("Hold() error = %v", err)
	}
	if err := svc.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if idleCount != 1 {
		t.Errorf("idle callback fired %d times, want 1", idleCount)
	}
}

func TestService_DownloadNow_RequiresOwnership(t *testing.T) {
	svc, sched, _ := newTestService(t)

	if err := svc.Schedule("dl-1", 0, true, dbus.Sender("peer-a")); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	waitFor(t, time.Second, func() bool {
		_, ok := sched.GetEntry("dl-1")
		return ok
	})

	if err := svc.DownloadNow("dl-1", dbus.Sender("peer-b")); err == nil {
		t.Fatalf("DownloadNow() by non-owner succeeded, want error")
	}
	if err := svc.DownloadNow("dl-1", dbus.Sender("peer-a")); err != nil {
		t.Fatalf("DownloadNow() by owner error = %v", err)
	}
}

func TestService_PropertyAccessors(t *testing.T) {
	svc, sched, _ := newTestService(t)

	if svc.EntryCount() != 0 || svc.ActiveEntryCount() != 0 {
		t.Fatalf("initial counts not zero")
	}
	if !svc.DownloadsAllowed() {
		t.Fatalf("DownloadsAllowed() = false, want true before any entries")
	}

	if err := svc.Schedule("dl-1", 0, true, dbus.Sender("peer-a")); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	waitFor(t, time.Second, func() bool { return sched.IsEntryActive("dl-1") })

	if svc.EntryCount() != 1 || svc.ActiveEntryCount() != 1 {
		t.Errorf("EntryCount/ActiveEntryCount = %d/%d, want 1/1", svc.EntryCount(), svc.ActiveEntryCount())
	}
}

func TestWireError_NilIsNil(t *testing.T) {
	if err := wireError(nil); err != nil {
		t.Errorf("wireError(nil) = %v, want nil", err)
	}
	if err := wireError(errors.New("boom")); err == nil || err.Name != "org.endlessm.Mogwai.Error.Failed" {
		t.Errorf("wireError(unknown) = %v, want Error.Failed", err)
	}
}
