package syncmap

import (
	"sync"
	"testing"
)

func TestMap_SetGetDelete(t *testing.T) {
	m := New[string, int]()

	if _, ok := m.Get("a"); ok {
		t.Fatalf("Get() on empty map returned ok=true")
	}

	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v, want 1, true", v, ok)
	}

	if got := m.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	m.Delete("a", "missing")

	if _, ok := m.Get("a"); ok {
		t.Fatalf("Get(a) after Delete still found")
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("Len() after Delete = %d, want 1", got)
	}
}

func TestMap_RangeAndSnapshot(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	sum := 0
	m.Range(func(key string, val int) bool {
		sum += val
		return true
	})
	if sum != 6 {
		t.Fatalf("Range sum = %d, want 6", sum)
	}

	var seen int
	m.Range(func(key string, val int) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Fatalf("Range did not stop early: saw %d entries, want 1", seen)
	}

	if got := len(m.Snapshot()); got != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", got)
	}
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, i*i)
			m.Get(i)
		}(i)
	}
	wg.Wait()

	if got := m.Len(); got != 100 {
		t.Fatalf("Len() = %d, want 100", got)
	}
}
