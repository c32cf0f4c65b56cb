// Package report renders already-computed budget and analytics figures as
// CSV artifacts. It does no computation of its own.
package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"subtrack/internal/analytics"
	"subtrack/internal/budget"
)

// DepartmentUsage pairs a department name with its evaluated position.
type DepartmentUsage struct {
	Name  string
	Usage budget.Usage
}

// BudgetCSV renders one row per department.
func BudgetCSV(rows []DepartmentUsage) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"department", "budget", "spent", "remaining", "usage_percent", "included_requests"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.Name,
			r.Usage.Budget.StringFixed(2),
			r.Usage.Spent.StringFixed(2),
			r.Usage.Remaining.StringFixed(2),
			r.Usage.UsagePercent.StringFixed(2),
			strconv.Itoa(len(r.Usage.Included)),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// SummaryCSV renders an analytics summary as a flat key/value section
// followed by the grouped breakdowns.
func SummaryCSV(s analytics.Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	kv := [][]string{
		{"metric", "value"},
		{"total_requests", strconv.Itoa(s.TotalRequests)},
		{"active_requests", strconv.Itoa(s.ActiveRequests)},
		{"pending_requests", strconv.Itoa(s.PendingRequests)},
		{"total_monthly_spend", s.TotalMonthlySpend.StringFixed(2)},
	}
	for _, rec := range kv {
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	if err := w.Write([]string{"department", "monthly_spend"}); err != nil {
		return nil, err
	}
	for _, d := range s.SpendByDepartment {
		if err := w.Write([]string{d.Name, d.Spend.StringFixed(2)}); err != nil {
			return nil, err
		}
	}

	if err := w.Write([]string{"platform", "monthly_spend"}); err != nil {
		return nil, err
	}
	for _, p := range s.SpendByPlatform {
		if err := w.Write([]string{p.Name, p.Spend.StringFixed(2)}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
