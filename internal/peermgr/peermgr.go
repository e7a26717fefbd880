// Package peermgr resolves the identity of peers (clients registering
// schedule entries) and notifies the scheduler when a peer disappears.
package peermgr

import (
	"context"
	"errors"
)

// ErrIdentifyingPeer is returned when a peer's credentials could not be
// resolved within the configured retry budget.
var ErrIdentifyingPeer = errors.New("peermgr: failed to identify peer")

// PeerVanishedFunc is invoked when a peer owning entries disappears (e.g.
// its bus connection closes).
type PeerVanishedFunc func(peerID string)

// Manager resolves peer identities and reports peer loss. EnsurePeerCredentials
// is asynchronous because identity resolution may require a round trip (e.g.
// reading /proc/<pid>/exe through a broker); PeerCredentials is a synchronous
// cache lookup used on the scheduler's hot ranking path.
type Manager interface {
	// EnsurePeerCredentials resolves and caches peerID's credential string
	// (an opaque executable-path-like identity), retrying internally up to
	// an implementation-chosen timeout. Returns ErrIdentifyingPeer on
	// failure.
	EnsurePeerCredentials(ctx context.Context, peerID string) (string, error)

	// PeerCredentials returns the cached credential string for peerID, if
	// one has already been resolved.
	PeerCredentials(peerID string) (string, bool)

	OnPeerVanished(fn PeerVanishedFunc)
}
