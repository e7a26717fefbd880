// Package entry defines the schedule entry record the scheduler tracks on
// behalf of its clients.
package entry

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidID is returned when a candidate entry id fails validation.
var ErrInvalidID = errors.New("entry: invalid id")

// ValidateID enforces an entry id's invariants: non-empty, valid UTF-8,
// printable, and safe to use as a path component (no '/' and no NUL).
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if !utf8.ValidString(id) {
		return ErrInvalidID
	}
	for _, r := range id {
		if r == '/' || r == 0 || !unicode.IsPrint(r) {
			return ErrInvalidID
		}
	}
	return nil
}

// ScheduleEntry is a passive record describing one pending download. It is
// a value type: the scheduler holds the canonical copy, and observers
// receive copies they cannot use to mutate scheduler state.
type ScheduleEntry struct {
	ID        string
	Owner     string
	Priority  uint32
	Resumable bool
}

// New validates id and owner and returns a ScheduleEntry.
func New(id, owner string, priority uint32, resumable bool) (ScheduleEntry, error) {
	if err := ValidateID(id); err != nil {
		return ScheduleEntry{}, err
	}
	if err := ValidateID(owner); err != nil {
		return ScheduleEntry{}, err
	}

	return ScheduleEntry{
		ID:        id,
		Owner:     owner,
		Priority:  priority,
		Resumable: resumable,
	}, nil
}

// Data is the scheduler's internal bookkeeping paired 1-1 with a
// ScheduleEntry by id.
type Data struct {
	IsActive bool
}
