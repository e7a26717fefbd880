package peermgr

import (
	"context"
	"errors"
	"testing"
)

func TestStaticManager_EnsurePeerCredentials(t *testing.T) {
	m := NewStaticManager()

	if _, err := m.EnsurePeerCredentials(context.Background(), "peer-a"); !errors.Is(err, ErrIdentifyingPeer) {
		t.Fatalf("EnsurePeerCredentials() on unseeded peer error = %v, want ErrIdentifyingPeer", err)
	}

	m.SetCredential("peer-a", "/usr/bin/curl")
	cred, err := m.EnsurePeerCredentials(context.Background(), "peer-a")
	if err != nil {
		t.Fatalf("EnsurePeerCredentials() error = %v", err)
	}
	if cred != "/usr/bin/curl" {
		t.Errorf("EnsurePeerCredentials() = %q, want /usr/bin/curl", cred)
	}
}

func TestStaticManager_PeerCredentials(t *testing.T) {
	m := NewStaticManager()
	if _, ok := m.PeerCredentials("peer-a"); ok {
		t.Fatalf("PeerCredentials() on unseeded peer reported ok")
	}

	m.SetCredential("peer-a", "/usr/bin/curl")
	cred, ok := m.PeerCredentials("peer-a")
	if !ok || cred != "/usr/bin/curl" {
		t.Errorf("PeerCredentials() = %q, %v, want /usr/bin/curl, true", cred, ok)
	}
}

func TestStaticManager_Vanish(t *testing.T) {
	m := NewStaticManager()
	m.SetCredential("peer-a", "/usr/bin/curl")

	var vanished []string
	m.OnPeerVanished(func(peerID string) {
		vanished = append(vanished, peerID)
	})

	m.Vanish("peer-a")

	if _, ok := m.PeerCredentials("peer-a"); ok {
		t.Errorf("PeerCredentials() after Vanish still reports ok")
	}
	if len(vanished) != 1 || vanished[0] != "peer-a" {
		t.Errorf("OnPeerVanished callback got %v, want [peer-a]", vanished)
	}
}

func TestExeManager_EnsurePeerCredentials_RetriesThenSucceeds(t *testing.T) {
	m := NewExeManager()

	attempts := 0
	m.readlink = func(pid string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("no such process")
		}
		return "/usr/libexec/eos-updater", nil
	}

	cred, err := m.EnsurePeerCredentials(context.Background(), "1234")
	if err != nil {
		t.Fatalf("EnsurePeerCredentials() error = %v", err)
	}
	if cred != "/usr/libexec/eos-updater" {
		t.Errorf("EnsurePeerCredentials() = %q, want /usr/libexec/eos-updater", cred)
	}
	if attempts != 3 {
		t.Errorf("readlink called %d times, want 3", attempts)
	}

	// Second call is served from cache, not re-resolved.
	attempts = 0
	cred2, err := m.EnsurePeerCredentials(context.Background(), "1234")
	if err != nil {
		t.Fatalf("EnsurePeerCredentials() (cached) error = %v", err)
	}
	if cred2 != cred || attempts != 0 {
		t.Errorf("EnsurePeerCredentials() (cached) = %q, attempts = %d, want cached hit with 0 readlink calls", cred2, attempts)
	}
}

func TestExeManager_EnsurePeerCredentials_GivesUpAfterRetries(t *testing.T) {
	m := NewExeManager()
	m.readlink = func(pid string) (string, error) {
		return "", errors.New("permission denied")
	}

	if _, err := m.EnsurePeerCredentials(context.Background(), "1234"); !errors.Is(err, ErrIdentifyingPeer) {
		t.Fatalf("EnsurePeerCredentials() error = %v, want ErrIdentifyingPeer", err)
	}
}

func TestExeManager_NotifyVanished(t *testing.T) {
	m := NewExeManager()
	m.readlink = func(pid string) (string, error) { return "/usr/bin/curl", nil }

	if _, err := m.EnsurePeerCredentials(context.Background(), "1234"); err != nil {
		t.Fatalf("EnsurePeerCredentials() error = %v", err)
	}

	var vanished []string
	m.OnPeerVanished(func(peerID string) { vanished = append(vanished, peerID) })

	m.NotifyVanished("1234")

	if _, ok := m.PeerCredentials("1234"); ok {
		t.Errorf("PeerCredentials() after NotifyVanished still reports ok")
	}
	if len(vanished) != 1 || vanished[0] != "1234" {
		t.Errorf("OnPeerVanished callback got %v, want [1234]", vanished)
	}
}
