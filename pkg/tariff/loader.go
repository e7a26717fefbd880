package tariff

import (
	"fmt"
	"io"
)

// Loader reads a single tariff from a byte stream. A Loader is single-use:
// call Load once and discard it.
type Loader struct {
	r io.Reader
}

// NewLoader returns a Loader reading from r.
func NewLoader(r io.Reader) *Loader {
	return &Loader{r: r}
}

// Load reads the full tariff file from the underlying reader and returns the
// decoded, validated Tariff.
func (l *Loader) Load() (*Tariff, error) {
	raw, err := io.ReadAll(l.r)
	if err != nil {
		return nil, fmt.Errorf("tariff: reading file: %w", err)
	}

	var t Tariff
	if err := t.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load is a convenience wrapper around NewLoader(r).Load() for one-shot reads.
func Load(r io.Reader) (*Tariff, error) {
	return NewLoader(r).Load()
}
