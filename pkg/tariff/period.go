package tariff

import "time"

// RepeatType is the calendar unit a Period recurs on.
type RepeatType uint16

const (
	RepeatNone RepeatType = iota
	RepeatHour
	RepeatDay
	RepeatWeek
	RepeatMonth
	RepeatYear
)

func (r RepeatType) String() string {
	switch r {
	case RepeatNone:
		return "none"
	case RepeatHour:
		return "hour"
	case RepeatDay:
		return "day"
	case RepeatWeek:
		return "week"
	case RepeatMonth:
		return "month"
	case RepeatYear:
		return "year"
	default:
		return "unknown"
	}
}

func validRepeatType(r RepeatType) bool {
	return r <= RepeatYear
}

// Unlimited is the capacity limit value meaning "no cap". Zero means
// "downloads forbidden in this period".
const Unlimited uint64 = ^uint64(0)

// maxRepresentableYear bounds the recurrence sequence; an occurrence whose
// year would exceed it is treated as past the end of time (spec §4.A).
const maxRepresentableYear = 9999

// Period is one recurring time window with a capacity limit. It is
// immutable after construction.
type Period struct {
	start         time.Time
	end           time.Time
	repeatType    RepeatType
	repeatPeriod  uint32
	capacityLimit uint64
}

// NewPeriod validates and constructs a Period.
func NewPeriod(start, end time.Time, repeatType RepeatType, repeatPeriod uint32, capacityLimit uint64) (*Period, error) {
	if err := ValidatePeriod(start, end, repeatType, repeatPeriod); err != nil {
		return nil, err
	}

	return &Period{
		start:         start,
		end:           end,
		repeatType:    repeatType,
		repeatPeriod:  repeatPeriod,
		capacityLimit: capacityLimit,
	}, nil
}

// ValidatePeriod checks the construction invariants of a Period without
// building one.
func ValidatePeriod(start, end time.Time, repeatType RepeatType, repeatPeriod uint32) error {
	if start.IsZero() {
		return invalidPeriod("start is required")
	}
	if end.IsZero() {
		return invalidPeriod("end is required")
	}
	if !end.After(start) {
		return invalidPeriod("end must be after start")
	}
	if !validRepeatType(repeatType) {
		return invalidPeriod("unknown repeat type")
	}
	if repeatType == RepeatNone && repeatPeriod != 0 {
		return invalidPeriod("repeat_period must be zero when repeat_type is none")
	}
	if repeatType != RepeatNone && repeatPeriod == 0 {
		return invalidPeriod("repeat_period must be nonzero when repeat_type is set")
	}

	return nil
}

func (p *Period) Start() time.Time       { return p.start }
func (p *Period) End() time.Time         { return p.end }
func (p *Period) RepeatType() RepeatType { return p.repeatType }
func (p *Period) RepeatPeriod() uint32   { return p.repeatPeriod }
func (p *Period) CapacityLimit() uint64  { return p.capacityLimit }
func (p *Period) Span() time.Duration    { return p.end.Sub(p.start) }
func (p *Period) Forbidden() bool        { return p.capacityLimit == 0 }

// Occurrence is one concrete [Start, End) interval produced by applying a
// Period's recurrence rule to its base window.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// addUnits adds n*repeatPeriod calendar units of repeatType to t, in t's own
// location. ok is false if the resulting wall-clock instant does not exist
// (DST spring-forward hole) or would overflow the representable calendar
// range.
func addUnits(t time.Time, repeatType RepeatType, n int64, repeatPeriod uint32) (time.Time, bool) {
	if n == 0 {
		return t, true
	}

	loc := t.Location()
	units := n * int64(repeatPeriod)

	// naive computes the intended wall-clock target using plain calendar
	// carry arithmetic in UTC, which has no DST and therefore no gaps: it
	// is purely "what date/time do we mean", independent of the Period's
	// real location.
	var naive time.Time
	switch repeatType {
	case RepeatNone:
		return t, n == 0

	case RepeatHour:
		naive = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+int(units), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	case RepeatDay:
		naive = time.Date(t.Year(), t.Month(), t.Day()+int(units), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	case RepeatWeek:
		naive = time.Date(t.Year(), t.Month(), t.Day()+int(units*7), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	case RepeatMonth:
		totalMonths := int64(t.Month()) - 1 + units
		year := int64(t.Year()) + totalMonths/12
		month := totalMonths % 12
		if month < 0 {
			month += 12
			year--
		}
		day := clampDay(int(year), time.Month(month+1), t.Day())
		naive = time.Date(int(year), time.Month(month+1), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	case RepeatYear:
		year := int64(t.Year()) + units
		day := t.Day()
		if t.Month() == time.February && day == 29 && !isLeapYear(int(year)) {
			day = 28
		}
		naive = time.Date(int(year), t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	default:
		return t, false
	}

	if naive.Year() > maxRepresentableYear {
		return naive, false
	}

	candidate := time.Date(naive.Year(), naive.Month(), naive.Day(), naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), loc)

	// If the real location's DST transition swallowed this wall-clock
	// instant (spring-forward gap), time.Date silently normalizes it to a
	// different wall time; detect that by comparing fields back out.
	y, mo, d := candidate.Date()
	h, mi, s := candidate.Clock()
	if y != naive.Year() || mo != naive.Month() || d != naive.Day() ||
		h != naive.Hour() || mi != naive.Minute() || s != naive.Second() {
		return candidate, false
	}

	return candidate, true
}

func clampDay(year int, month time.Month, day int) int {
	last := daysInMonth(year, month)
	if day > last {
		return last
	}
	return day
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// occurrenceAt computes the n-th occurrence (n >= 0) of the period, applying
// the recurrence rule to both endpoints independently. ok is false if either
// endpoint's addition is not a valid wall-clock instant or overflows the
// calendar range.
func (p *Period) occurrenceAt(n int64) (Occurrence, bool) {
	s, okS := addUnits(p.start, p.repeatType, n, p.repeatPeriod)
	e, okE := addUnits(p.end, p.repeatType, n, p.repeatPeriod)

	return Occurrence{Start: s, End: e}, okS && okE
}

// attemptStart returns occurrenceAt(n)'s start time ignoring existence,
// purely for monotonic search: it is non-decreasing in n regardless of
// whether the occurrence it names actually exists.
func (p *Period) attemptStart(n int64) time.Time {
	s, _ := addUnits(p.start, p.repeatType, n, p.repeatPeriod)
	return s
}

// unitSeconds approximates the average length, in seconds, of one
// recurrence unit — used only to seed the occurrence search, never to
// decide correctness.
func (p *Period) unitSeconds() float64 {
	switch p.repeatType {
	case RepeatHour:
		return 3600 * float64(p.repeatPeriod)
	case RepeatDay:
		return 86400 * float64(p.repeatPeriod)
	case RepeatWeek:
		return 7 * 86400 * float64(p.repeatPeriod)
	case RepeatMonth:
		return 30.436875 * 86400 * float64(p.repeatPeriod)
	case RepeatYear:
		return 365.2425 * 86400 * float64(p.repeatPeriod)
	default:
		return 0
	}
}

// searchN returns the largest n >= 0 such that attemptStart(n) <= when, or
// -1 if even n == 0 starts after when. It uses an exponential (galloping)
// search seeded by the average unit length, so it stays fast across ranges
// spanning thousands of years.
func (p *Period) searchN(when time.Time) int64 {
	if when.Before(p.start) {
		return -1
	}
	if p.repeatType == RepeatNone {
		return 0
	}

	seconds := p.unitSeconds()
	if seconds <= 0 {
		return 0
	}

	guess := int64(when.Sub(p.start).Seconds() / seconds)
	if guess < 0 {
		guess = 0
	}

	if p.attemptStart(guess).After(when) {
		lo, hi := int64(0), guess
		for hi > lo && p.attemptStart(hi).After(when) {
			step := (hi - lo + 1) / 2
			if step < 1 {
				step = 1
			}
			hi -= step
			if hi < lo {
				hi = lo
			}
		}
		return p.linearSearchDown(when, hi)
	}

	lo, hi := guess, guess+1
	for !p.attemptStart(hi).After(when) {
		lo = hi
		step := (hi - guess + 1) * 2
		hi = guess + step
	}

	return p.linearSearchUp(when, lo, hi)
}

func (p *Period) linearSearchDown(when time.Time, hi int64) int64 {
	for n := hi; n >= 0; n-- {
		if !p.attemptStart(n).After(when) {
			return n
		}
	}
	return -1
}

func (p *Period) linearSearchUp(when time.Time, lo, hi int64) int64 {
	for {
		mid := lo + (hi-lo)/2
		if mid == lo {
			break
		}
		if p.attemptStart(mid).After(when) {
			hi = mid
		} else {
			lo = mid
		}
	}
	// lo is now the largest value in [lo, hi] with attemptStart(lo) <= when,
	// assuming monotonicity; walk a small margin to be safe against
	// non-uniform month/year clamping drift near the boundary.
	for lo+1 <= hi && !p.attemptStart(lo+1).After(when) {
		lo++
	}
	return lo
}

// Contains returns the unique recurrence interval [s, e) with s <= when < e,
// if one exists.
func (p *Period) Contains(when time.Time) (Occurrence, bool) {
	if p.repeatType == RepeatNone {
		if !when.Before(p.start) && when.Before(p.end) {
			return Occurrence{Start: p.start, End: p.end}, true
		}
		return Occurrence{}, false
	}

	n := p.searchN(when)
	if n < 0 {
		return Occurrence{}, false
	}

	// The occurrence search is seeded off the start endpoint; because the
	// end endpoint recurs independently (and may clamp/skip differently),
	// walk forward a few slots to find one whose window actually covers
	// `when`, per §4.A's "advance by one more recurrence and retry".
	for tries := 0; tries < 4; tries++ {
		occ, ok := p.occurrenceAt(n)
		if !ok {
			n++
			continue
		}
		if !when.Before(occ.Start) && when.Before(occ.End) {
			return occ, true
		}
		if !occ.End.After(when) {
			n++
			continue
		}
		// occ.Start > when: the search invariant broke (shouldn't happen);
		// bail out rather than returning a wrong window.
		return Occurrence{}, false
	}

	return Occurrence{}, false
}

// NextRecurrence returns the earliest recurrence strictly after when. When
// is nil to request the base interval [start, end).
func (p *Period) NextRecurrence(when *time.Time) (Occurrence, bool) {
	if when == nil {
		return Occurrence{Start: p.start, End: p.end}, true
	}

	if p.repeatType == RepeatNone {
		if p.start.After(*when) {
			return Occurrence{Start: p.start, End: p.end}, true
		}
		return Occurrence{}, false
	}

	n := p.searchN(*when)
	if n < 0 {
		n = -1 // first candidate to check is n=0
	}

	for tries := int64(0); tries < 64; tries++ {
		n++
		occ, ok := p.occurrenceAt(n)
		if !ok {
			continue
		}
		if occ.Start.After(*when) {
			return occ, true
		}
	}

	return Occurrence{}, false
}
