package handlers

import (
	"net/http"
	"strconv"
	"time"

	"subtrack/internal/analytics"
	"subtrack/internal/apperrors"
	"subtrack/internal/auth"
	"subtrack/internal/budget"
	"subtrack/internal/models"
	"subtrack/internal/report"
)

// visibleDepartments scopes department listings to the caller: staff see
// everything, managers only what they are assigned to.
func visibleDepartments(d Deps, r *http.Request) ([]models.Department, error) {
	u := auth.UserFromContext(r.Context())
	if u.IsStaff() {
		return d.Departments.List(r.Context())
	}
	return d.Departments.ListForManager(r.Context(), u.ID)
}

func parseWindow(r *http.Request) (from, to time.Time, ok bool, err error) {
	fromS, toS := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromS == "" && toS == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if fromS == "" || toS == "" {
		return time.Time{}, time.Time{}, false, apperrors.Validation("from and to must be given together")
	}
	fp, err := parseDate(fromS)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	tp, err := parseDate(toS)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if !fp.Before(*tp) {
		return time.Time{}, time.Time{}, false, apperrors.Validation("from must precede to")
	}
	return *fp, *tp, true, nil
}

func parseDeptFilter(r *http.Request) (uint, bool, error) {
	s := r.URL.Query().Get("department")
	if s == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false, apperrors.Validation("invalid department id")
	}
	return uint(id), true, nil
}

type departmentUsage struct {
	DepartmentID uint         `json:"department_id"`
	Department   string       `json:"department"`
	Usage        budget.Usage `json:"usage"`
}

func evaluateUsage(d Deps, r *http.Request, windowed bool, from, to time.Time, forReport bool) ([]departmentUsage, error) {
	depts, err := visibleDepartments(d, r)
	if err != nil {
		return nil, err
	}
	filterID, filtered, err := parseDeptFilter(r)
	if err != nil {
		return nil, err
	}
	out := make([]departmentUsage, 0, len(depts))
	for _, dept := range depts {
		if filtered && dept.ID != filterID {
			continue
		}
		rows, err := d.Requests.ListByDepartment(r.Context(), dept.ID)
		if err != nil {
			return nil, err
		}
		var u budget.Usage
		switch {
		case forReport:
			u = budget.EvaluateReport(dept, rows, from, to)
		case windowed:
			u = budget.EvaluateRange(dept, rows, from, to)
		default:
			u = budget.Evaluate(dept, rows)
		}
		out = append(out, departmentUsage{DepartmentID: dept.ID, Department: dept.Name, Usage: u})
	}
	if filtered && len(out) == 0 {
		return nil, apperrors.NotFound("department")
	}
	return out, nil
}

func BudgetOverview(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, windowed, err := parseWindow(r)
		if err != nil {
			respondError(w, err)
			return
		}
		rows, err := evaluateUsage(d, r, windowed, from, to, false)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, rows)
	}
}

func summaryFor(d Deps, r *http.Request, now time.Time) (analytics.Summary, error) {
	period := analytics.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = analytics.PeriodAllTime
	}
	if !period.Valid() {
		return analytics.Summary{}, apperrors.Validation("unknown period")
	}
	depts, err := visibleDepartments(d, r)
	if err != nil {
		return analytics.Summary{}, err
	}
	filterID, filtered, err := parseDeptFilter(r)
	if err != nil {
		return analytics.Summary{}, err
	}
	names := make(map[uint]string, len(depts))
	ids := make([]uint, 0, len(depts))
	for _, dept := range depts {
		if filtered && dept.ID != filterID {
			continue
		}
		names[dept.ID] = dept.Name
		ids = append(ids, dept.ID)
	}
	if filtered && len(ids) == 0 {
		return analytics.Summary{}, apperrors.NotFound("department")
	}
	requests, err := d.Requests.ListVisible(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(requests, period, ids, names, now), nil
}

func AnalyticsSummary(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := summaryFor(d, r, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, s)
	}
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ExportBudgetCSV renders the export view of the budget: ACTIVE spend only,
// over an explicit window (default: the current calendar month).
func ExportBudgetCSV(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, windowed, err := parseWindow(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if !windowed {
			now := time.Now()
			from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			to = from.AddDate(0, 1, 0)
		}
		rows, err := evaluateUsage(d, r, true, from, to, true)
		if err != nil {
			respondError(w, err)
			return
		}
		usages := make([]report.DepartmentUsage, 0, len(rows))
		for _, row := range rows {
			usages = append(usages, report.DepartmentUsage{Name: row.Department, Usage: row.Usage})
		}
		data, err := report.BudgetCSV(usages)
		if err != nil {
			respondError(w, apperrors.Dependency("budget export", err))
			return
		}
		writeCSV(w, "budget.csv", data)
	}
}

func ExportAnalyticsCSV(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := summaryFor(d, r, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		data, err := report.SummaryCSV(s)
		if err != nil {
			respondError(w, apperrors.Dependency("analytics export", err))
			return
		}
		writeCSV(w, "analytics.csv", data)
	}
}
