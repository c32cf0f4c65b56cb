// Package budget computes department spend against the fixed monthly budget.
//
// Three variants exist and they intentionally disagree on which statuses
// count; callers must not swap one for another:
//
//   - Evaluate: general display, counts ACTIVE and APPROVED.
//   - CheckLive: advisory pre-creation check, counts ACTIVE and APPROVED as
//     current usage and adds the candidate cost on top.
//   - EvaluateReport: export/report view, counts ACTIVE only.
//
// The live/report discrepancy is inherited behavior that downstream reports
// depend on, so it is kept as two named entry points rather than unified.
package budget

import (
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/models"
	"subtrack/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Usage is the evaluated position of one department.
type Usage struct {
	Budget       decimal.Decimal  `json:"budget"`
	Spent        decimal.Decimal  `json:"spent"`
	Remaining    decimal.Decimal  `json:"remaining"`
	UsagePercent decimal.Decimal  `json:"usage_percent"`
	Included     []models.Request `json:"included_requests,omitempty"`
}

func statusIn(s models.Status, set ...models.Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// relevantInRange implements the window-relevance rules: a request counts
// when its effective start or its renewal falls inside [from, to), when it
// spans the whole window, or when it is open-ended and started before the
// window.
func relevantInRange(r models.Request, from, to time.Time) bool {
	eff := r.EffectiveDate()
	if !eff.Before(from) && eff.Before(to) {
		return true
	}
	if r.RenewalDate != nil && !r.RenewalDate.Before(from) && r.RenewalDate.Before(to) {
		return true
	}
	if eff.Before(from) {
		if r.RenewalDate == nil {
			return true // open-ended, still running
		}
		if r.RenewalDate.After(to) {
			return true // spans the entire window
		}
	}
	return false
}

func tally(budgetAmount decimal.Decimal, included []models.Request, spent decimal.Decimal) Usage {
	spent = money.Round2(spent)
	pct := decimal.Zero
	if !budgetAmount.IsZero() {
		pct = money.Round2(spent.Div(budgetAmount).Mul(hundred))
	}
	return Usage{
		Budget:       budgetAmount,
		Spent:        spent,
		Remaining:    budgetAmount.Sub(spent), // negative on overspend, never clamped
		UsagePercent: pct,
		Included:     included,
	}
}

// Evaluate is the general display variant: recurring monthly spend over
// ACTIVE and APPROVED requests, no date window.
func Evaluate(dept models.Department, requests []models.Request) Usage {
	var included []models.Request
	spent := decimal.Zero
	for _, r := range requests {
		if !statusIn(r.Status, models.StatusActive, models.StatusApproved) {
			continue
		}
		included = append(included, r)
		spent = spent.Add(money.MonthlyEquivalent(r.BilledCost(), r.Frequency))
	}
	return tally(dept.MonthlyBudget, included, spent)
}

// EvaluateRange is Evaluate restricted to requests relevant inside [from, to),
// with ONE_TIME charges counted at full value when their effective date is in
// the window.
func EvaluateRange(dept models.Department, requests []models.Request, from, to time.Time) Usage {
	var included []models.Request
	spent := decimal.Zero
	for _, r := range requests {
		if !statusIn(r.Status, models.StatusActive, models.StatusApproved) {
			continue
		}
		if !relevantInRange(r, from, to) {
			continue
		}
		included = append(included, r)
		spent = spent.Add(money.RangeEquivalent(r.BilledCost(), r.Frequency, r.EffectiveDate(), from, to))
	}
	return tally(dept.MonthlyBudget, included, spent)
}

// CheckLive is the advisory pre-creation check. It returns true when adding
// the candidate's full cost on top of the current ACTIVE+APPROVED usage
// would exceed the budget. The candidate cost is deliberately not
// normalized: the warning asks "can this invoice land this month". It never
// blocks anything; creation proceeds regardless.
func CheckLive(dept models.Department, requests []models.Request, newCost decimal.Decimal) bool {
	usage := Evaluate(dept, requests)
	return usage.Spent.Add(newCost).GreaterThan(dept.MonthlyBudget)
}

// EvaluateReport is the stricter export variant: ACTIVE requests only,
// windowed by [from, to). Reports built from this view will show less usage
// than Evaluate for departments with APPROVED-but-not-yet-active requests;
// that difference is intentional.
func EvaluateReport(dept models.Department, requests []models.Request, from, to time.Time) Usage {
	var included []models.Request
	spent := decimal.Zero
	for _, r := range requests {
		if r.Status != models.StatusActive {
			continue
		}
		if !relevantInRange(r, from, to) {
			continue
		}
		included = append(included, r)
		spent = spent.Add(money.RangeEquivalent(r.BilledCost(), r.Frequency, r.EffectiveDate(), from, to))
	}
	return tally(dept.MonthlyBudget, included, spent)
}
