// Package analytics rolls stored requests up into dashboard KPIs.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/models"
	"subtrack/internal/money"
)

// Period selects the half-open aggregation window ending now.
type Period string

const (
	PeriodMonth    Period = "month"
	PeriodQuarter  Period = "quarter"
	PeriodHalfYear Period = "halfyear"
	PeriodYear     Period = "year"
	PeriodAllTime  Period = "all_time"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodHalfYear, PeriodYear, PeriodAllTime:
		return true
	}
	return false
}

// Window returns the period's start relative to now. ok is false for
// all_time, meaning no lower bound applies.
func (p Period) Window(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true
	case PeriodQuarter:
		return now.AddDate(0, -3, 0), true
	case PeriodHalfYear:
		return now.AddDate(0, -6, 0), true
	case PeriodYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

type NamedSpend struct {
	Name  string          `json:"name"`
	Spend decimal.Decimal `json:"spend"`
}

type Summary struct {
	TotalRequests     int             `json:"total_requests"`
	ActiveRequests    int             `json:"active_requests"`
	PendingRequests   int             `json:"pending_requests"`
	TotalMonthlySpend decimal.Decimal `json:"total_monthly_spend"`
	SpendByDepartment []NamedSpend    `json:"spend_by_department"`
	SpendByPlatform   []NamedSpend    `json:"spend_by_platform"`
}

const topPlatforms = 5

// Summarize aggregates requests created inside the period window, optionally
// restricted to the given department ids. Spend figures use the recurring
// monthly view, so one-time purchases count toward request totals but not
// toward spend. deptNames maps department id to display name.
func Summarize(requests []models.Request, period Period, departmentIDs []uint, deptNames map[uint]string, now time.Time) Summary {
	since, bounded := period.Window(now)

	deptFilter := map[uint]bool{}
	for _, id := range departmentIDs {
		deptFilter[id] = true
	}

	s := Summary{TotalMonthlySpend: decimal.Zero}
	byDept := map[uint]decimal.Decimal{}
	byPlatform := map[string]decimal.Decimal{}
	var deptOrder []uint
	var platformOrder []string

	for _, r := range requests {
		if len(deptFilter) > 0 && !deptFilter[r.DepartmentID] {
			continue
		}
		if bounded && r.CreatedAt.Before(since) {
			continue
		}
		s.TotalRequests++
		switch r.Status {
		case models.StatusActive:
			s.ActiveRequests++
		case models.StatusPending:
			s.PendingRequests++
		}

		// only approved or running subscriptions spend money
		if r.Status != models.StatusActive && r.Status != models.StatusApproved {
			continue
		}
		spend := money.MonthlyEquivalent(r.BilledCost(), r.Frequency)
		s.TotalMonthlySpend = s.TotalMonthlySpend.Add(spend)

		if _, seen := byDept[r.DepartmentID]; !seen {
			deptOrder = append(deptOrder, r.DepartmentID)
		}
		byDept[r.DepartmentID] = byDept[r.DepartmentID].Add(spend)

		if _, seen := byPlatform[r.PlatformName]; !seen {
			platformOrder = append(platformOrder, r.PlatformName)
		}
		byPlatform[r.PlatformName] = byPlatform[r.PlatformName].Add(spend)
	}

	s.TotalMonthlySpend = money.Round2(s.TotalMonthlySpend)

	for _, id := range deptOrder {
		name := deptNames[id]
		if name == "" {
			name = "unknown"
		}
		s.SpendByDepartment = append(s.SpendByDepartment, NamedSpend{Name: name, Spend: money.Round2(byDept[id])})
	}

	for _, p := range platformOrder {
		s.SpendByPlatform = append(s.SpendByPlatform, NamedSpend{Name: p, Spend: money.Round2(byPlatform[p])})
	}
	// stable keeps input order for equal spends
	sort.SliceStable(s.SpendByPlatform, func(i, j int) bool {
		return s.SpendByPlatform[i].Spend.GreaterThan(s.SpendByPlatform[j].Spend)
	})
	if len(s.SpendByPlatform) > topPlatforms {
		s.SpendByPlatform = s.SpendByPlatform[:topPlatforms]
	}

	return s
}
