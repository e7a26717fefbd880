// Package tariff models a time-domain description of network policy: a
// Tariff is an ordered set of recurring Periods, each carrying a capacity
// limit, and resolves to the governing Period for any given instant.
package tariff

import "errors"

// ErrInvalidPeriod is returned by NewPeriod when start/end/repeat arguments
// violate the Period invariants.
var ErrInvalidPeriod = errors.New("tariff: invalid period")

// ErrInvalidTariff is returned by Validate/New/Load when a tariff's name or
// period set violates tariff invariants (name rules, non-emptiness, partial
// overlap). The wire-format decode errors in wire.go also wrap it.
var ErrInvalidTariff = errors.New("tariff: invalid tariff")

// InvalidPeriodError carries the specific reason a Period failed validation.
type InvalidPeriodError struct {
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return "tariff: invalid period: " + e.Reason
}

func (e *InvalidPeriodError) Unwrap() error { return ErrInvalidPeriod }

func invalidPeriod(reason string) error {
	return &InvalidPeriodError{Reason: reason}
}

// InvalidTariffError carries the specific reason a Tariff failed validation.
type InvalidTariffError struct {
	Reason string
}

func (e *InvalidTariffError) Error() string {
	return "tariff: invalid tariff: " + e.Reason
}

func (e *InvalidTariffError) Unwrap() error { return ErrInvalidTariff }

func invalidTariff(reason string) error {
	return &InvalidTariffError{Reason: reason}
}
