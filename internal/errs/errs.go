// Package errs defines the core error kinds shared across mogwaid's
// scheduler, tariff, and bus-facing layers, and the wire-name translation
// the bus layer applies at its boundary.
package errs

import (
	"errors"

	"github.com/endlessm/mogwai/internal/entry"
	"github.com/endlessm/mogwai/internal/peermgr"
	"github.com/endlessm/mogwai/pkg/tariff"
)

// ErrFull is returned by UpdateEntries when admitting the batch would
// exceed the scheduler's entry cap.
var ErrFull = errors.New("scheduler: entry limit exceeded")

// ErrInvalidParameters is raised only at the bus boundary, for malformed
// external submissions (the core itself never returns it).
var ErrInvalidParameters = errors.New("scheduler: invalid parameters")

// ErrInvalidated applies to client-side proxies: the service they were
// bound to went away.
var ErrInvalidated = errors.New("scheduler: invalidated")

// ErrUnknownEntry is raised at the bus boundary when a caller names an
// entry id that does not exist, or that belongs to a different owner.
var ErrUnknownEntry = errors.New("scheduler: unknown entry")

// WireCode maps a core error kind to the stable name the bus boundary
// exposes to clients. Unrecognized errors map to "Failed".
func WireCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFull):
		return "org.endlessm.Mogwai.Error.Full"
	case errors.Is(err, ErrInvalidParameters):
		return "org.endlessm.Mogwai.Error.InvalidParameters"
	case errors.Is(err, ErrInvalidated):
		return "org.endlessm.Mogwai.Error.Invalidated"
	case errors.Is(err, tariff.ErrInvalidTariff):
		return "org.endlessm.Mogwai.Error.InvalidTariff"
	case errors.Is(err, tariff.ErrInvalidPeriod):
		return "org.endlessm.Mogwai.Error.InvalidPeriod"
	case errors.Is(err, entry.ErrInvalidID):
		return "org.endlessm.Mogwai.Error.InvalidParameters"
	case errors.Is(err, peermgr.ErrIdentifyingPeer):
		return "org.endlessm.Mogwai.Error.IdentifyingPeer"
	case errors.Is(err, ErrUnknownEntry):
		return "org.endlessm.Mogwai.Error.InvalidParameters"
	default:
		return "org.endlessm.Mogwai.Error.Failed"
	}
}
