// Package config holds mogwaid's process-wide settings in an atomically
// swapped global, the same pattern the rest of the daemon's collaborators
// assume is safe to read from any goroutine without locking.
package config

import (
	"sync/atomic"
	"time"
)

// Config holds the scheduler's tunables and the daemon's operational
// settings.
type Config struct {
	// MaxEntries caps the number of schedule entries the scheduler will
	// hold at once.
	MaxEntries int

	// MaxActiveEntries caps how many entries may be active (permitted to
	// download) simultaneously.
	MaxActiveEntries int

	// InactivityTimeout is how long mogwaid waits with no entries and no
	// hold before exiting. Zero disables the timeout.
	InactivityTimeout time.Duration

	// PrivilegedPeerExecutables lists executable paths whose owning peers
	// receive the maximum peer priority (see internal/scheduler ranking).
	PrivilegedPeerExecutables []string
}

func defaultConfig() Config {
	return Config{
		MaxEntries:        1024,
		MaxActiveEntries:  1,
		InactivityTimeout: 30 * time.Second,
		PrivilegedPeerExecutables: []string{
			"/usr/libexec/eos-updater",
			"/usr/libexec/flatpak-system-helper",
		},
	}
}

var cfg atomic.Value

// Init stores the default configuration as the current global config.
func Init() {
	c := defaultConfig()
	cfg.Store(&c)
}

// Load returns the current config. Treat the result as read-only; mutate
// via Update or Swap instead.
func Load() *Config {
	return cfg.Load().(*Config)
}

// Update applies mut to a copy of the current config and atomically
// installs the result as the new current config.
func Update(mut func(*Config)) *Config {
	curr := Load()
	next := *curr
	mut(&next)
	cfg.Store(&next)
	return &next
}

// Swap atomically replaces the current config with next.
func Swap(next Config) *Config {
	cfg.Store(&next)
	return &next
}
