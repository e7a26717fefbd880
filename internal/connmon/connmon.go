// Package connmon provides the scheduler's view of active network
// connections: a small capability interface yielding per-connection policy
// details, plus a static test double.
package connmon

import "github.com/endlessm/mogwai/pkg/tariff"

// Metered describes whether a connection is believed to be metered.
type Metered int

const (
	MeteredUnknown Metered = iota
	MeteredYes
	MeteredNo
	MeteredGuessYes
	MeteredGuessNo
)

func (m Metered) String() string {
	switch m {
	case MeteredYes:
		return "yes"
	case MeteredNo:
		return "no"
	case MeteredGuessYes:
		return "guess-yes"
	case MeteredGuessNo:
		return "guess-no"
	default:
		return "unknown"
	}
}

// ConnectionDetails describes one active connection's download policy, as
// polled at the start of every reschedule.
type ConnectionDetails struct {
	Metered                   Metered
	AllowDownloads            bool
	AllowDownloadsWhenMetered bool
	Tariff                    *tariff.Tariff // nil if the connection has no tariff
}

// ConnectionsChangedFunc is invoked when the set of active connections
// changes.
type ConnectionsChangedFunc func(added, removed []string)

// ConnectionDetailsChangedFunc is invoked when an existing connection's
// details change without the connection itself appearing or disappearing.
type ConnectionDetailsChangedFunc func(id string)

// Monitor abstracts the host's network connection state.
type Monitor interface {
	// ConnectionIDs returns the currently active connection ids. The
	// result is stable within one cooperative dispatch tick.
	ConnectionIDs() []string

	// ConnectionDetails fetches the details for id. It reports false if id
	// has vanished since ConnectionIDs was called.
	ConnectionDetails(id string) (ConnectionDetails, bool)

	OnConnectionsChanged(fn ConnectionsChangedFunc)
	OnConnectionDetailsChanged(fn ConnectionDetailsChangedFunc)
}
