package config

import "testing"

func TestInit_SetsDefaults(t *testing.T) {
	Init()

	c := Load()
	if c.MaxEntries != 1024 {
		t.Errorf("MaxEntries = %d, want 1024", c.MaxEntries)
	}
	if c.MaxActiveEntries != 1 {
		t.Errorf("MaxActiveEntries = %d, want 1", c.MaxActiveEntries)
	}
}

func TestUpdate_MutatesACopyAtomically(t *testing.T) {
	Init()

	Update(func(c *Config) { c.MaxEntries = 5 })

	if got := Load().MaxEntries; got != 5 {
		t.Errorf("MaxEntries after Update = %d, want 5", got)
	}
}

func TestSwap_ReplacesWholeConfig(t *testing.T) {
	Init()

	Swap(Config{MaxEntries: 7, MaxActiveEntries: 2})

	c := Load()
	if c.MaxEntries != 7 || c.MaxActiveEntries != 2 {
		t.Errorf("Load() after Swap = %+v, want {MaxEntries:7 MaxActiveEntries:2}", c)
	}
}
