package peermgr

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/endlessm/mogwai/pkg/retry"
)

// ExeManager resolves a peer's credential as the absolute path of the
// executable backing its process id, read from /proc/<pid>/exe. The
// symlink can briefly fail to resolve immediately after a process forks, so
// lookups retry with a short exponential backoff before giving up.
type ExeManager struct {
	mu          sync.Mutex
	credentials map[string]string
	vanished    []PeerVanishedFunc

	readlink func(pid string) (string, error)
}

// NewExeManager returns an ExeManager reading process identity from the
// host's /proc filesystem.
func NewExeManager() *ExeManager {
	return &ExeManager{
		credentials: make(map[string]string),
		readlink: func(pid string) (string, error) {
			return os.Readlink(fmt.Sprintf("/proc/%s/exe", pid))
		},
	}
}

func (m *ExeManager) EnsurePeerCredentials(ctx context.Context, peerID string) (string, error) {
	if cred, ok := m.PeerCredentials(peerID); ok {
		return cred, nil
	}

	var exe string
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		exe, err = m.readlink(peerID)
		return err
	}, retry.WithExponentialBackoff(4, 20*time.Millisecond, 500*time.Millisecond)...)

	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrIdentifyingPeer, peerID, err)
	}

	m.mu.Lock()
	m.credentials[peerID] = exe
	m.mu.Unlock()

	return exe, nil
}

func (m *ExeManager) PeerCredentials(peerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[peerID]
	return cred, ok
}

func (m *ExeManager) OnPeerVanished(fn PeerVanishedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vanished = append(m.vanished, fn)
}

// NotifyVanished drops peerID's cached credential and notifies observers.
// Callers wire this to whatever transport-level disconnect signal indicates
// a peer is gone (e.g. a bus NameOwnerChanged event).
func (m *ExeManager) NotifyVanished(peerID string) {
	m.mu.Lock()
	delete(m.credentials, peerID)
	callbacks := append([]PeerVanishedFunc(nil), m.vanished...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(peerID)
	}
}
