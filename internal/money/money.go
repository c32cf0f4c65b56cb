// Package money normalizes subscription costs onto a common monthly basis.
//
// Two distinct views exist on purpose. MonthlyEquivalent answers "what is the
// recurring run-rate", so one-time charges contribute nothing. RangeEquivalent
// answers "what was actually spent inside this window", so a one-time charge
// counts at full value when its effective date falls inside the window. The
// two must not be merged into one function; callers pick the view explicitly.
package money

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
	OneTime Frequency = "ONE_TIME"
)

var twelve = decimal.NewFromInt(12)

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Yearly, OneTime:
		return true
	}
	return false
}

func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown payment frequency %q", s)
	}
	return f, nil
}

// MonthlyEquivalent converts cost to its recurring monthly figure.
// ONE_TIME charges have no run-rate and yield zero.
func MonthlyEquivalent(cost decimal.Decimal, freq Frequency) decimal.Decimal {
	switch freq {
	case Monthly:
		return cost
	case Yearly:
		return cost.Div(twelve)
	default:
		return decimal.Zero
	}
}

// RangeEquivalent converts cost to its contribution within [from, to).
// Recurring charges contribute their monthly figure; a ONE_TIME charge
// contributes its full cost when effective falls inside the window and
// nothing otherwise. A zero effective time counts as outside any window.
func RangeEquivalent(cost decimal.Decimal, freq Frequency, effective time.Time, from, to time.Time) decimal.Decimal {
	if freq != OneTime {
		return MonthlyEquivalent(cost, freq)
	}
	if effective.IsZero() {
		return decimal.Zero
	}
	if !effective.Before(from) && effective.Before(to) {
		return cost
	}
	return decimal.Zero
}

// Round2 applies the half-up rounding used everywhere money is displayed.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
