package model

import "cloud.google.com/go/civil"

// IsZeroDate reports whether d is the unset date.
func IsZeroDate(d civil.Date) bool {
	return d == civil.Date{}
}

// WholeYears returns the number of complete years from `from` to `to`.
// Unknown or future dates yield 0.
func WholeYears(from, to civil.Date) int {
	if IsZeroDate(from) || IsZeroDate(to) || !from.Before(to) {
		return 0
	}

	years := to.Year - from.Year
	if to.Month < from.Month || (to.Month == from.Month && to.Day < from.Day) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
