package connmon

import (
	"reflect"
	"testing"
)

func TestStaticMonitor_ConnectionIDsSorted(t *testing.T) {
	m := NewStaticMonitor()
	m.SetConnection("conn-b", ConnectionDetails{AllowDownloads: true})
	m.SetConnection("conn-a", ConnectionDetails{AllowDownloads: true})

	got := m.ConnectionIDs()
	want := []string{"conn-a", "conn-b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ConnectionIDs() = %v, want %v", got, want)
	}
}

func TestStaticMonitor_ConnectionDetails(t *testing.T) {
	m := NewStaticMonitor()
	if _, ok := m.ConnectionDetails("conn-a"); ok {
		t.Fatalf("ConnectionDetails() on unknown id reported ok")
	}

	d := ConnectionDetails{Metered: MeteredYes, AllowDownloads: true}
	m.SetConnection("conn-a", d)

	got, ok := m.ConnectionDetails("conn-a")
	if !ok || got != d {
		t.Errorf("ConnectionDetails() = %+v, %v, want %+v, true", got, ok, d)
	}

	m.RemoveConnection("conn-a")
	if _, ok := m.ConnectionDetails("conn-a"); ok {
		t.Errorf("ConnectionDetails() after RemoveConnection reported ok")
	}
}

func TestStaticMonitor_EmitNotifiesObservers(t *testing.T) {
	m := NewStaticMonitor()

	var gotAdded, gotRemoved []string
	m.OnConnectionsChanged(func(added, removed []string) {
		gotAdded, gotRemoved = added, removed
	})

	var changedID string
	m.OnConnectionDetailsChanged(func(id string) {
		changedID = id
	})

	m.SetConnection("conn-a", ConnectionDetails{AllowDownloads: true})
	m.EmitConnectionsChanged([]string{"conn-a"}, nil)
	if !reflect.DeepEqual(gotAdded, []string{"conn-a"}) || len(gotRemoved) != 0 {
		t.Errorf("EmitConnectionsChanged observer got added=%v removed=%v", gotAdded, gotRemoved)
	}

	m.EmitConnectionDetailsChanged("conn-a")
	if changedID != "conn-a" {
		t.Errorf("EmitConnectionDetailsChanged observer got id=%q, want conn-a", changedID)
	}
}
