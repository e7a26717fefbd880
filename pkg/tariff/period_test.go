package tariff

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata for %q not available: %v", name, err)
	}
	return loc
}

func TestPeriod_Contains_SimpleDaily(t *testing.T) {
	start := time.Date(2018, 1, 1, 22, 0, 0, 0, time.UTC)
	end := time.Date(2018, 1, 2, 6, 0, 0, 0, time.UTC)
	p, err := NewPeriod(start, end, RepeatDay, 1, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	tests := []struct {
		name string
		when time.Time
		want bool
	}{
		{"at start", start, true},
		{"inside", time.Date(2018, 1, 2, 2, 0, 0, 0, time.UTC), true},
		{"at end (exclusive)", end, false},
		{"before any occurrence", time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC), false},
		{"third occurrence", time.Date(2018, 1, 4, 0, 0, 0, 0, time.UTC), true},
		{"gap between occurrences", time.Date(2018, 1, 2, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := p.Contains(tt.when)
			if ok != tt.want {
				t.Errorf("Contains(%v) ok = %v, want %v", tt.when, ok, tt.want)
			}
		})
	}
}

func TestPeriod_Contains_DSTSpringForwardGap(t *testing.T) {
	loc := mustLocation(t, "Europe/London")

	// 2018-03-25: clocks in Europe/London jump from 01:00 GMT to 02:00 BST.
	// A weekly period at 01:30-01:45 has no occurrence that week: the wall
	// clock instant 01:30 never happens on that date.
	start := time.Date(2018, 3, 18, 1, 30, 0, 0, loc)
	end := time.Date(2018, 3, 18, 1, 45, 0, 0, loc)
	p, err := NewPeriod(start, end, RepeatWeek, 1, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	missing := time.Date(2018, 3, 25, 3, 0, 0, 0, loc)
	if _, ok := p.Contains(missing); ok {
		t.Errorf("Contains(%v) = true, want false (DST gap week)", missing)
	}

	next, ok := p.NextRecurrence(&missing)
	if !ok {
		t.Fatalf("NextRecurrence after gap week: ok = false, want true")
	}
	wantNext := time.Date(2018, 4, 1, 1, 30, 0, 0, loc)
	if !next.Start.Equal(wantNext) {
		t.Errorf("NextRecurrence start = %v, want %v", next.Start, wantNext)
	}
}

func TestPeriod_MonthlyEndOfMonthClamping(t *testing.T) {
	// Base window starts on the 31st; a monthly recurrence must clamp to the
	// last day of shorter months rather than overflow into the next month.
	start := time.Date(2018, 1, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2018, 1, 31, 1, 0, 0, 0, time.UTC)
	p, err := NewPeriod(start, end, RepeatMonth, 1, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	// February has 28 days in 2018 (not a leap year).
	feb := time.Date(2018, 2, 28, 0, 30, 0, 0, time.UTC)
	occ, ok := p.Contains(feb)
	if !ok {
		t.Fatalf("Contains(%v) = false, want true (clamped to Feb 28)", feb)
	}
	wantStart := time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)
	if !occ.Start.Equal(wantStart) {
		t.Errorf("occurrence start = %v, want %v", occ.Start, wantStart)
	}
}

func TestPeriod_YearlyLeapDayClamping(t *testing.T) {
	start := time.Date(2016, 2, 29, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, 2, 29, 1, 0, 0, 0, time.UTC)
	p, err := NewPeriod(start, end, RepeatYear, 1, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	when := time.Date(2017, 2, 28, 0, 30, 0, 0, time.UTC)
	occ, ok := p.Contains(when)
	if !ok {
		t.Fatalf("Contains(%v) = false, want true (clamped to Feb 28 in non-leap year)", when)
	}
	wantStart := time.Date(2017, 2, 28, 0, 0, 0, 0, time.UTC)
	if !occ.Start.Equal(wantStart) {
		t.Errorf("occurrence start = %v, want %v", occ.Start, wantStart)
	}
}

func TestPeriod_EndOfRepresentableRange(t *testing.T) {
	start := time.Date(1970, 1, 1, 22, 0, 0, 0, time.UTC)
	end := time.Date(1970, 1, 2, 6, 0, 0, 0, time.UTC)
	p, err := NewPeriod(start, end, RepeatDay, 1, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	when := time.Date(9999, 12, 31, 22, 0, 0, 0, time.UTC)
	if _, ok := p.Contains(when); ok {
		t.Errorf("Contains(%v) = true, want false (occurrence's end overflows year 9999)", when)
	}
	if _, ok := p.NextRecurrence(&when); ok {
		t.Errorf("NextRecurrence(%v) = true, want false (no representable next occurrence)", when)
	}
}

func TestPeriod_NextRecurrence_BaseWindowWhenNil(t *testing.T) {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 1, 1, 0, 0, 0, time.UTC)
	p, err := NewPeriod(start, end, RepeatNone, 0, 0)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}

	occ, ok := p.NextRecurrence(nil)
	if !ok || !occ.Start.Equal(start) || !occ.End.Equal(end) {
		t.Errorf("NextRecurrence(nil) = %+v, %v, want [%v,%v), true", occ, ok, start, end)
	}
}

func TestValidatePeriod_Invariants(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)

	tests := []struct {
		name         string
		start, end   time.Time
		repeatType   RepeatType
		repeatPeriod uint32
		wantErr      bool
	}{
		{"valid no-repeat", base, later, RepeatNone, 0, false},
		{"valid repeating", base, later, RepeatDay, 1, false},
		{"end before start", later, base, RepeatNone, 0, true},
		{"zero start", time.Time{}, later, RepeatNone, 0, true},
		{"repeat type none with nonzero period", base, later, RepeatNone, 1, true},
		{"repeating with zero period", base, later, RepeatDay, 0, true},
		{"unknown repeat type", base, later, RepeatType(99), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePeriod(tt.start, tt.end, tt.repeatType, tt.repeatPeriod)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
