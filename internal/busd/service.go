// Package busd is the bus-facing external layer (§4.H, contract only): it
// maps the scheduler's core operations onto a per-process API surface,
// enforces that a caller only operates on entries it owns, translates core
// error kinds into stable wire error names, and emits debounced
// property-change notifications. The core scheduler knows nothing about
// this layer or about D-Bus.
package busd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/godbus/dbus/v5"

	"github.com/endlessm/mogwai/internal/entry"
	"github.com/endlessm/mogwai/internal/errs"
	"github.com/endlessm/mogwai/internal/scheduler"
)

const (
	// InterfaceName is the D-Bus interface this service exports.
	InterfaceName = "org.endlessm.Mogwai1"
	// ObjectPath is the single object this service exports.
	ObjectPath = dbus.ObjectPath("/org/endlessm/Mogwai1")
	// BusName is the well-known name mogwaid requests on the system bus.
	BusName = "org.endlessm.Mogwai1"

	propertiesChangedDebounce = 50 * time.Millisecond
)

// EntryRequest is one entry submission as decoded off the bus.
type EntryRequest struct {
	ID        string
	Priority  uint32
	Resumable bool
}

// Service adapts a *scheduler.Scheduler to the bus surface described in
// §4.H: Schedule/ScheduleEntries, entry Remove, Hold/Release, DownloadNow,
// and the ActiveEntryCount/EntryCount/DownloadsAllowed properties.
type Service struct {
	log   *slog.Logger
	sched *scheduler.Scheduler
	conn  *dbus.Conn // nil in tests that exercise Service methods directly

	mu        sync.Mutex
	holds     int
	onIdle    []func()
	onBusy    []func()
	wasIdle   bool
	debounced func(func())
}

// NewService constructs a Service bound to sched. conn may be nil, in which
// case property-changed signals are computed but not transmitted (used by
// tests that call Service methods without a live bus connection).
func NewService(log *slog.Logger, sched *scheduler.Scheduler, conn *dbus.Conn) *Service {
	s := &Service{
		log:       log.With("component", "busd"),
		sched:     sched,
		conn:      conn,
		wasIdle:   true,
		debounced: debounce.New(propertiesChangedDebounce),
	}

	sched.OnEntriesChanged(func(added []entry.ScheduleEntry, removed []string) {
		s.notifyPropertiesChanged()
		s.checkIdle()
	})
	sched.OnActiveEntriesChanged(func(nowActive, noLongerActive []string) {
		s.notifyPropertiesChanged()
	})
	sched.OnAllowDownloadsChanged(func(allowed bool) {
		s.notifyPropertiesChanged()
	})

	return s
}

// Export registers the service's methods under InterfaceName at ObjectPath
// on conn, and requests BusName. The org.freedesktop.DBus.Properties
// interface is not exported (see the note above ActiveEntryCount). With a
// nil conn it does nothing and returns nil.
func (s *Service) Export() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return err
	}
	reply, err := s.conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errs.ErrInvalidated
	}
	return nil
}

// Run blocks until ctx is canceled and then returns nil. mogwaid's main runs
// this alongside the scheduler's own event loop.
func (s *Service) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// OnIdle registers fn to be called whenever the hold count and entry count
// both drop to zero (used by mogwaid to arm its inactivity timeout).
func (s *Service) OnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = append(s.onIdle, fn)
}

// OnBusy registers fn to be called whenever the daemon leaves the idle
// state (a hold is taken or an entry is registered), so mogwaid can
// disarm a pending inactivity exit.
func (s *Service) OnBusy(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBusy = append(s.onBusy, fn)
}

// IsIdle reports whether the daemon currently has no holds and no entries.
func (s *Service) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds == 0 && len(s.sched.GetEntries()) == 0
}

func (s *Service) checkIdle() {
	s.mu.Lock()
	idle := s.holds == 0 && len(s.sched.GetEntries()) == 0
	becameIdle := idle && !s.wasIdle
	becameBusy := !idle && s.wasIdle
	s.wasIdle = idle
	idleCallbacks := append([]func(){}, s.onIdle...)
	busyCallbacks := append([]func(){}, s.onBusy...)
	s.mu.Unlock()

	switch {
	case becameIdle:
		for _, fn := range idleCallbacks {
			fn()
		}
	case becameBusy:
		for _, fn := range busyCallbacks {
			fn()
		}
	}
}

// Schedule registers a single entry owned by the caller.
func (s *Service) Schedule(id string, priority uint32, resumable bool, sender dbus.Sender) *dbus.Error {
	e, err := entry.New(id, string(sender), priority, resumable)
	if err != nil {
		return wireError(err)
	}
	if err := s.sched.UpdateEntries([]entry.ScheduleEntry{e}, nil); err != nil {
		return wireError(err)
	}
	return nil
}

// ScheduleEntries registers a batch of entries owned by the caller,
// atomically: either all are admitted or none are (mirroring update_entries'
// all-or-nothing Full semantics).
func (s *Service) ScheduleEntries(requests []EntryRequest, sender dbus.Sender) *dbus.Error {
	entries := make([]entry.ScheduleEntry, 0, len(requests))
	for _, r := range requests {
		e, err := entry.New(r.ID, string(sender), r.Priority, r.Resumable)
		if err != nil {
			return wireError(err)
		}
		entries = append(entries, e)
	}
	if err := s.sched.UpdateEntries(entries, nil); err != nil {
		return wireError(err)
	}
	return nil
}

// Remove retracts id, provided the caller owns it.
func (s *Service) Remove(id string, sender dbus.Sender) *dbus.Error {
	if err := s.checkOwnership(id, sender); err != nil {
		return wireError(err)
	}
	if err := s.sched.UpdateEntries(nil, []string{id}); err != nil {
		return wireError(err)
	}
	return nil
}

// DownloadNow forces id active for exactly one reschedule pass, provided
// the caller owns it. See SPEC_FULL.md's DownloadNow override note: this
// does not raise max_active_entries or bypass admissibility.
func (s *Service) DownloadNow(id string, sender dbus.Sender) *dbus.Error {
	if err := s.checkOwnership(id, sender); err != nil {
		return wireError(err)
	}
	if err := s.sched.ForceActiveOnce(id); err != nil {
		return wireError(err)
	}
	return nil
}

func (s *Service) checkOwnership(id string, sender dbus.Sender) error {
	e, ok := s.sched.GetEntry(id)
	if !ok || e.Owner != string(sender) {
		return errs.ErrUnknownEntry
	}
	return nil
}

// Hold increments the daemon's hold count, keeping it alive even with no
// entries registered.
func (s *Service) Hold() *dbus.Error {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()
	s.checkIdle()
	return nil
}

// Release decrements the hold count.
func (s *Service) Release() *dbus.Error {
	s.mu.Lock()
	if s.holds > 0 {
		s.holds--
	}
	s.mu.Unlock()
	s.checkIdle()
	return nil
}

// ActiveEntryCount, EntryCount, and DownloadsAllowed are exported as plain
// read accessor methods rather than wired through
// org.freedesktop.DBus.Properties.Get/GetAll (which would need the
// dbus/v5/prop helper and its own object registration); PropertiesChanged
// is still emitted on every change so clients that only watch signals see
// live values, and a future iteration can swap these for true properties
// without touching anything above this file.

// ActiveEntryCount is the ActiveEntryCount property.
func (s *Service) ActiveEntryCount() uint32 {
	count := uint32(0)
	for _, e := range s.sched.GetEntries() {
		if s.sched.IsEntryActive(e.ID) {
			count++
		}
	}
	return count
}

// EntryCount is the EntryCount property.
func (s *Service) EntryCount() uint32 {
	return uint32(len(s.sched.GetEntries()))
}

// DownloadsAllowed is the DownloadsAllowed property.
func (s *Service) DownloadsAllowed() bool {
	return s.sched.AllowDownloads()
}

func (s *Service) notifyPropertiesChanged() {
	s.debounced(func() {
		if s.conn == nil {
			return
		}
		changed := map[string]dbus.Variant{
			"ActiveEntryCount": dbus.MakeVariant(s.ActiveEntryCount()),
			"EntryCount":       dbus.MakeVariant(s.EntryCount()),
			"DownloadsAllowed": dbus.MakeVariant(s.DownloadsAllowed()),
		}
		if err := s.conn.Emit(ObjectPath, "org.freedesktop.DBus.Properties.PropertiesChanged",
			InterfaceName, changed, []string{}); err != nil {
			s.log.Warn("failed to emit PropertiesChanged", "error", err)
		}
	})
}

// wireError maps a core error to a *dbus.Error carrying its stable wire
// name. Unrecognized errors still surface (as Error.Failed) rather than
// being swallowed.
func wireError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.NewError(errs.WireCode(err), []interface{}{err.Error()})
}
