package tariff

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Tariff is an ordered, non-overlapping set of Periods under one name. It is
// immutable after validation.
type Tariff struct {
	name    string
	periods []*Period
}

// Name returns the tariff's name.
func (t *Tariff) Name() string { return t.name }

// Periods returns the tariff's periods, sorted by decreasing span then
// increasing start. The returned slice must not be mutated.
func (t *Tariff) Periods() []*Period { return t.periods }

// idnaProfile enforces internationalized-hostname validation on tariff
// names, the same class of name this profile is meant for (RFC 5891).
var idnaProfile = idna.New(
	idna.ValidateLabels(true),
	idna.VerifyDNSLength(false),
	idna.CheckHyphens(false),
)

// ValidateName enforces §3's name rules: non-empty, valid UTF-8, no path
// separators, and passes internationalized-hostname validation.
func ValidateName(name string) error {
	if name == "" {
		return invalidTariff("name must not be empty")
	}
	if !utf8.ValidString(name) {
		return invalidTariff("name must be valid UTF-8")
	}
	if strings.ContainsAny(name, "/\\") {
		return invalidTariff("name must not contain '/' or '\\'")
	}
	if _, err := idnaProfile.ToASCII(name); err != nil {
		return invalidTariff("name failed internationalized-hostname validation: " + err.Error())
	}

	return nil
}

// sortPeriods orders periods by decreasing span, then by increasing start,
// per §3.
func sortPeriods(periods []*Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		si, sj := periods[i].Span(), periods[j].Span()
		if si != sj {
			return si > sj
		}
		return periods[i].Start().Before(periods[j].Start())
	})
}

// overlaps reports whether the base windows of p and q overlap at all.
func overlaps(p, q *Period) bool {
	return p.Start().Before(q.End()) && q.Start().Before(p.End())
}

// nests reports whether p's base window is contained within q's (p ⊆ q).
func nests(p, q *Period) bool {
	return !p.Start().Before(q.Start()) && !p.End().After(q.End())
}

// Validate enforces §3's tariff invariants over name and periods: name
// rules, non-emptiness, and pairwise non-overlap (p ⊆ q, q ⊆ p, or
// p ∩ q = ∅ for every distinct pair). As acknowledged in spec §9, this
// check operates on periods' base windows only — it does not expand
// recurrences, so two periods that don't overlap at their base windows may
// still collide in a later recurrence.
func Validate(name string, periods []*Period) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(periods) == 0 {
		return invalidTariff("periods must not be empty")
	}

	for i := 0; i < len(periods); i++ {
		for j := i + 1; j < len(periods); j++ {
			p, q := periods[i], periods[j]
			if !overlaps(p, q) {
				continue
			}
			if nests(p, q) || nests(q, p) {
				continue
			}
			return invalidTariff("periods partially overlap")
		}
	}

	return nil
}

// New validates and constructs a Tariff. Periods are sorted by decreasing
// span then increasing start.
func New(name string, periods []*Period) (*Tariff, error) {
	sorted := append([]*Period(nil), periods...)
	sortPeriods(sorted)

	if err := Validate(name, sorted); err != nil {
		return nil, err
	}

	return &Tariff{name: name, periods: sorted}, nil
}

// LookupPeriod returns the shortest period whose current recurrence
// contains when, or false if none does. Uniqueness follows from the
// non-overlap rule: no two periods share both span and start, so among all
// periods whose occurrence contains `when`, the shortest span is unique.
func (t *Tariff) LookupPeriod(when time.Time) (*Period, bool) {
	var best *Period
	var bestSpan time.Duration

	for _, p := range t.periods {
		if _, ok := p.Contains(when); !ok {
			continue
		}
		span := p.Span()
		if best == nil || span < bestSpan {
			best = p
			bestSpan = span
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// NextTransition returns the smallest instant after when at which
// LookupPeriod's result would change: the minimum of the governing period's
// occurrence end and every other period's next recurrence start.
func (t *Tariff) NextTransition(when time.Time) (time.Time, bool) {
	var (
		next    time.Time
		hasNext bool
	)

	fold := func(candidate time.Time) {
		if !hasNext || candidate.Before(next) {
			next = candidate
			hasNext = true
		}
	}

	governing, hasGoverning := t.LookupPeriod(when)
	if hasGoverning {
		if occ, ok := governing.Contains(when); ok {
			fold(occ.End)
		}
	}

	for _, p := range t.periods {
		if hasGoverning && p == governing {
			continue
		}
		if occ, ok := p.NextRecurrence(&when); ok {
			fold(occ.Start)
		}
	}

	return next, hasNext
}
