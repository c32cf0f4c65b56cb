package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"subtrack/internal/models"
	"subtrack/internal/money"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func req(cost string, freq money.Frequency, status models.Status) models.Request {
	return models.Request{Cost: d(cost), Frequency: freq, Status: status}
}

func itDept() models.Department {
	return models.Department{ID: 1, Name: "IT", MonthlyBudget: d("5000")}
}

func TestEvaluateRecurringSpend(t *testing.T) {
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	c := req("500", money.OneTime, models.StatusActive)
	c.StartDate = &start

	usage := Evaluate(itDept(), []models.Request{
		req("1200", money.Monthly, models.StatusActive),
		req("6000", money.Yearly, models.StatusApproved),
		c,
	})

	assert.True(t, usage.Spent.Equal(d("1700")), "spent = %s", usage.Spent)
	assert.True(t, usage.UsagePercent.Equal(d("34")), "usage%% = %s", usage.UsagePercent)
	assert.True(t, usage.Remaining.Equal(d("3300")), "remaining = %s", usage.Remaining)
	assert.Len(t, usage.Included, 3)
}

func TestEvaluateSkipsUndecidedAndRejected(t *testing.T) {
	usage := Evaluate(itDept(), []models.Request{
		req("1000", money.Monthly, models.StatusPending),
		req("1000", money.Monthly, models.StatusRejected),
		req("1000", money.Monthly, models.StatusExpired),
		req("1000", money.Monthly, models.StatusActive),
	})
	assert.True(t, usage.Spent.Equal(d("1000")))
	assert.Len(t, usage.Included, 1)
}

func TestEvaluateUsesNegotiatedCost(t *testing.T) {
	final := d("900")
	r := req("1200", money.Monthly, models.StatusApproved)
	r.FinalCost = &final

	usage := Evaluate(itDept(), []models.Request{r})
	assert.True(t, usage.Spent.Equal(d("900")), "spent = %s", usage.Spent)
}

func TestEvaluateOverspendNotClamped(t *testing.T) {
	usage := Evaluate(itDept(), []models.Request{
		req("7500", money.Monthly, models.StatusActive),
	})
	assert.True(t, usage.Remaining.Equal(d("-2500")))
	assert.True(t, usage.UsagePercent.Equal(d("150")))
}

func TestEvaluateZeroBudget(t *testing.T) {
	dept := models.Department{ID: 2, Name: "Lab", MonthlyBudget: decimal.Zero}
	usage := Evaluate(dept, []models.Request{req("10", money.Monthly, models.StatusActive)})
	assert.True(t, usage.UsagePercent.IsZero())
	assert.True(t, usage.Remaining.Equal(d("-10")))
}

func TestEvaluateRounding(t *testing.T) {
	// 100/12 = 8.3333... -> 8.33 half-up
	usage := Evaluate(itDept(), []models.Request{req("100", money.Yearly, models.StatusActive)})
	assert.Equal(t, "8.33", usage.Spent.String())
	// 8.33/5000*100 = 0.1666 -> 0.17
	assert.Equal(t, "0.17", usage.UsagePercent.String())
}

func TestCheckLive(t *testing.T) {
	existing := []models.Request{req("4000", money.Monthly, models.StatusActive)}

	assert.True(t, CheckLive(itDept(), existing, d("1500")))
	assert.False(t, CheckLive(itDept(), existing, d("1000"))) // exactly at budget is not over
	assert.False(t, CheckLive(itDept(), nil, d("4999.99")))
}

func TestCheckLiveCountsApproved(t *testing.T) {
	existing := []models.Request{
		req("3000", money.Monthly, models.StatusApproved),
		req("1500", money.Monthly, models.StatusPending), // not usage yet
	}
	assert.True(t, CheckLive(itDept(), existing, d("2500")))
	assert.False(t, CheckLive(itDept(), existing, d("2000")))
}

func TestRangeRelevance(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	at := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name string
		r    models.Request
		want bool
	}{
		{"starts in range", models.Request{StartDate: at(from.AddDate(0, 0, 5))}, true},
		{"renewal in range", models.Request{
			StartDate:   at(from.AddDate(-1, 0, 0)),
			RenewalDate: at(from.AddDate(0, 0, 20)),
		}, true},
		{"spans whole range", models.Request{
			StartDate:   at(from.AddDate(0, -2, 0)),
			RenewalDate: at(to.AddDate(0, 2, 0)),
		}, true},
		{"open-ended started before", models.Request{StartDate: at(from.AddDate(0, -3, 0))}, true},
		{"ends before range", models.Request{
			StartDate:   at(from.AddDate(0, -6, 0)),
			RenewalDate: at(from.AddDate(0, -1, 0)),
		}, false},
		{"starts after range", models.Request{StartDate: at(to.AddDate(0, 1, 0))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevantInRange(tt.r, from, to))
		})
	}
}

func TestEvaluateReportActiveOnly(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	start := from.AddDate(0, 0, 3)

	active := req("1200", money.Monthly, models.StatusActive)
	active.StartDate = &start
	approved := req("2400", money.Monthly, models.StatusApproved)
	approved.StartDate = &start

	report := EvaluateReport(itDept(), []models.Request{active, approved}, from, to)
	assert.True(t, report.Spent.Equal(d("1200")), "report counts ACTIVE only, got %s", report.Spent)

	display := EvaluateRange(itDept(), []models.Request{active, approved}, from, to)
	assert.True(t, display.Spent.Equal(d("3600")), "display counts ACTIVE+APPROVED, got %s", display.Spent)
}

func TestEvaluateRangeOneTimeInWindow(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	inRange := req("500", money.OneTime, models.StatusActive)
	at := from.AddDate(0, 0, 10)
	inRange.StartDate = &at

	outOfRange := req("900", money.OneTime, models.StatusActive)
	before := from.AddDate(0, -2, 0)
	outOfRange.StartDate = &before

	usage := EvaluateRange(itDept(), []models.Request{inRange, outOfRange}, from, to)
	// the older one-time is "relevant" (open-ended start before range) but
	// contributes zero because its charge landed outside the window
	assert.True(t, usage.Spent.Equal(d("500")), "spent = %s", usage.Spent)
}
