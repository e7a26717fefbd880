package peermgr

import "context"

// StaticManager is a test double with a fixed, directly mutable peer ->
// credential map.
type StaticManager struct {
	credentials map[string]string
	vanished    []PeerVanishedFunc
}

// NewStaticManager returns an empty StaticManager.
func NewStaticManager() *StaticManager {
	return &StaticManager{credentials: make(map[string]string)}
}

// SetCredential pre-seeds peerID's resolved credential, as if
// EnsurePeerCredentials had already succeeded.
func (m *StaticManager) SetCredential(peerID, credential string) {
	m.credentials[peerID] = credential
}

func (m *StaticManager) EnsurePeerCredentials(ctx context.Context, peerID string) (string, error) {
	cred, ok := m.credentials[peerID]
	if !ok {
		return "", ErrIdentifyingPeer
	}
	return cred, nil
}

func (m *StaticManager) PeerCredentials(peerID string) (string, bool) {
	cred, ok := m.credentials[peerID]
	return cred, ok
}

func (m *StaticManager) OnPeerVanished(fn PeerVanishedFunc) {
	m.vanished = append(m.vanished, fn)
}

// Vanish simulates peerID disappearing, notifying registered observers and
// dropping its cached credential.
func (m *StaticManager) Vanish(peerID string) {
	delete(m.credentials, peerID)
	for _, fn := range m.vanished {
		fn(peerID)
	}
}
