package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"subtrack/internal/apperrors"
	"subtrack/internal/models"
	"subtrack/internal/money"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

type fakeRequestRepo struct {
	rows   map[uint]*models.Request
	nextID uint
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{rows: map[uint]*models.Request{}, nextID: 1}
}

func (f *fakeRequestRepo) Get(_ context.Context, id uint) (*models.Request, error) {
	r, ok := f.rows[id]
	if !ok || r.DeletedAt != nil {
		return nil, apperrors.NotFound("request")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestRepo) ListByDepartment(_ context.Context, deptID uint) ([]models.Request, error) {
	var out []models.Request
	for _, r := range f.rows {
		if r.DepartmentID == deptID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) ListByIDs(_ context.Context, ids []uint) ([]models.Request, error) {
	var out []models.Request
	for _, id := range ids {
		if r, ok := f.rows[id]; ok && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) Create(_ context.Context, r *models.Request) error {
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	f.nextID++
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) Update(_ context.Context, r *models.Request) (*models.Request, error) {
	prev, ok := f.rows[r.ID]
	if !ok {
		return nil, apperrors.NotFound("request")
	}
	prevCopy := *prev
	cp := *r
	f.rows[r.ID] = &cp
	return &prevCopy, nil
}

func (f *fakeRequestRepo) SoftDeleteAll(_ context.Context, ids []uint, at time.Time) error {
	for _, id := range ids {
		if r, ok := f.rows[id]; ok {
			r.DeletedAt = &at
		}
	}
	return nil
}

type fakeDeptRepo struct {
	depts    map[uint]*models.Department
	assigned map[string]bool // "deptID:userID"
}

func (f *fakeDeptRepo) Get(_ context.Context, id uint) (*models.Department, error) {
	dpt, ok := f.depts[id]
	if !ok {
		return nil, apperrors.NotFound("department")
	}
	return dpt, nil
}

func (f *fakeDeptRepo) ManagerAssigned(_ context.Context, deptID uint, userID string) (bool, error) {
	return f.assigned[fmt.Sprintf("%d:%s", deptID, userID)], nil
}

type fakeCommentRepo struct {
	rows []models.RequestComment
}

func (f *fakeCommentRepo) Create(_ context.Context, c *models.RequestComment) error {
	c.ID = uint(len(f.rows) + 1)
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeCommentRepo) ListByRequest(_ context.Context, requestID uint) ([]models.RequestComment, error) {
	var out []models.RequestComment
	for _, c := range f.rows {
		if c.RequestID == requestID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAudit struct {
	entries []models.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, e *models.AuditLog) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeNotifier struct {
	staff []string
	users map[string][]string
	fail  bool
}

func (f *fakeNotifier) NotifyUser(_ context.Context, userID, text string) error {
	if f.fail {
		return errors.New("bot down")
	}
	if f.users == nil {
		f.users = map[string][]string{}
	}
	f.users[userID] = append(f.users[userID], text)
	return nil
}

func (f *fakeNotifier) NotifyStaff(_ context.Context, text string) error {
	if f.fail {
		return errors.New("bot down")
	}
	f.staff = append(f.staff, text)
	return nil
}

type fakeCipher struct{}

func (fakeCipher) Encrypt(p string) (string, error) { return "enc:" + p, nil }
func (fakeCipher) Decrypt(c string) (string, error) {
	if len(c) < 4 || c[:4] != "enc:" {
		return "", errors.New("bad ciphertext")
	}
	return c[4:], nil
}

type fixture struct {
	svc      *Service
	requests *fakeRequestRepo
	depts    *fakeDeptRepo
	comments *fakeCommentRepo
	audit    *fakeAudit
	notifier *fakeNotifier

	manager    *models.User
	other      *models.User
	accountant *models.User
	admin      *models.User
}

func newFixture() *fixture {
	f := &fixture{
		requests: newFakeRequestRepo(),
		comments: &fakeCommentRepo{},
		audit:    &fakeAudit{},
		notifier: &fakeNotifier{},
		depts: &fakeDeptRepo{
			depts: map[uint]*models.Department{
				1: {ID: 1, Name: "IT", MonthlyBudget: d("5000")},
				2: {ID: 2, Name: "Marketing", MonthlyBudget: d("2000")},
			},
			assigned: map[string]bool{},
		},
		manager:    &models.User{ID: "u-manager", Role: models.RoleManager},
		other:      &models.User{ID: "u-other", Role: models.RoleManager},
		accountant: &models.User{ID: "u-acct", Role: models.RoleAccountant},
		admin:      &models.User{ID: "u-admin", Role: models.RoleAdmin},
	}
	f.depts.assigned["1:u-manager"] = true
	f.depts.assigned["1:u-other"] = true
	f.svc = NewService(f.requests, f.depts, f.comments, f.audit, f.notifier, fakeCipher{}, zap.NewNop().Sugar())
	return f
}

func (f *fixture) create(t *testing.T, cost string) *models.Request {
	t.Helper()
	res, err := f.svc.Create(context.Background(), f.manager, CreateInput{
		DepartmentID: 1,
		PlatformName: "Slack",
		Cost:         d(cost),
		Currency:     "USD",
		Frequency:    money.Monthly,
	})
	require.NoError(t, err)
	return res.Request
}

func TestCreatePendingWithBudgetWarning(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// fill usage close to the 5000 budget
	seed := f.create(t, "4000")
	_, err := f.svc.UpdateStatus(ctx, f.accountant, seed.ID, Decision{NewStatus: models.StatusActive})
	require.NoError(t, err)

	res, err := f.svc.Create(ctx, f.manager, CreateInput{
		DepartmentID: 1,
		PlatformName: "Datadog",
		Cost:         d("1500"),
		Currency:     "USD",
		Frequency:    money.Monthly,
	})
	require.NoError(t, err)
	assert.True(t, res.BudgetWarning, "over-budget creation must be flagged, not blocked")
	assert.Equal(t, models.StatusPending, res.Request.Status)
	assert.NotEmpty(t, f.notifier.staff)
}

func TestCreateRequiresDepartmentAssignment(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.manager, CreateInput{
		DepartmentID: 2, // not assigned
		PlatformName: "Canva",
		Cost:         d("50"),
		Frequency:    money.Monthly,
	})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestCreateRejectsNonPositiveCost(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.manager, CreateInput{
		DepartmentID: 1,
		PlatformName: "Free",
		Cost:         d("0"),
		Frequency:    money.Monthly,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdateStatusRejectRequiresReason(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")

	_, err := f.svc.UpdateStatus(context.Background(), f.accountant, r.ID, Decision{NewStatus: models.StatusRejected})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	got, err := f.svc.UpdateStatus(context.Background(), f.accountant, r.ID, Decision{
		NewStatus: models.StatusRejected, Reason: "too expensive",
	})
	require.NoError(t, err)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "too expensive", *got.RejectionReason)
}

func TestUpdateStatusApproveClearsReasonAndOverridesCost(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusRejected, Reason: "nope"})
	require.NoError(t, err)

	final := d("85.50")
	got, err := f.svc.UpdateStatus(ctx, f.admin, r.ID, Decision{NewStatus: models.StatusApproved, FinalCost: &final})
	require.NoError(t, err)
	assert.Nil(t, got.RejectionReason)
	require.NotNil(t, got.FinalCost)
	assert.True(t, got.FinalCost.Equal(final))
	assert.True(t, got.Cost.Equal(d("100")), "requested cost must survive the override")
	assert.True(t, got.BilledCost().Equal(final))
}

func TestRejectionClearsApprovedCostOverride(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	final := d("85.50")
	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusApproved, FinalCost: &final})
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusRejected, Reason: "vendor dropped the deal"})
	require.NoError(t, err)
	assert.Nil(t, got.FinalCost)
	assert.True(t, got.Cost.Equal(d("100")))
	assert.True(t, got.BilledCost().Equal(d("100")))
}

func TestActivationKeepsApprovedCostOverride(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	final := d("85.50")
	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusApproved, FinalCost: &final})
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusActive})
	require.NoError(t, err)
	require.NotNil(t, got.FinalCost)
	assert.True(t, got.BilledCost().Equal(final))
}

func TestUpdateStatusResetClearsReason(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusRejected, Reason: "nope"})
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusPending})
	require.NoError(t, err)
	assert.Nil(t, got.RejectionReason)
	assert.Nil(t, got.FinalCost)
}

func TestUpdateStatusForbiddenForManagers(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	_, err := f.svc.UpdateStatus(context.Background(), f.manager, r.ID, Decision{NewStatus: models.StatusApproved})
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestUpdateStatusCannotSetExpiredDirectly(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	_, err := f.svc.UpdateStatus(context.Background(), f.admin, r.ID, Decision{NewStatus: models.StatusExpired})
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestReversalNotificationWording(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusApproved})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusRejected, Reason: "budget cut"})
	require.NoError(t, err)

	msgs := f.notifier.users["u-manager"]
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "is now APPROVED")
	assert.Contains(t, msgs[1], "changed: APPROVED → REJECTED")
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	f.notifier.fail = true

	got, err := f.svc.UpdateStatus(context.Background(), f.accountant, r.ID, Decision{NewStatus: models.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestUpdateOwnerAndPendingOnly(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	ctx := context.Background()

	name := "Slack Pro"
	_, _, err := f.svc.Update(ctx, f.other, r.ID, UpdateInput{PlatformName: &name})
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusApproved})
	require.NoError(t, err)
	_, _, err = f.svc.Update(ctx, f.manager, r.ID, UpdateInput{PlatformName: &name})
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestUpdateTracksChangedFields(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")

	name := "Slack" // unchanged
	cost := d("120")
	freq := money.Yearly
	got, changed, err := f.svc.Update(context.Background(), f.manager, r.ID, UpdateInput{
		PlatformName: &name,
		Cost:         &cost,
		Frequency:    &freq,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cost", "frequency"}, changed)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestUpdateDepartmentRequiresAssignment(t *testing.T) {
	f := newFixture()
	r := f.create(t, "100")
	target := uint(2)
	_, _, err := f.svc.Update(context.Background(), f.manager, r.ID, UpdateInput{DepartmentID: &target})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestBulkDeleteAllOrNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r1 := f.create(t, "10")

	// r2 belongs to someone else
	res, err := f.svc.Create(ctx, f.other, CreateInput{
		DepartmentID: 1, PlatformName: "Miro", Cost: d("20"), Frequency: money.Monthly,
	})
	require.NoError(t, err)
	r2 := res.Request
	r3 := f.create(t, "30")

	err = f.svc.BulkDelete(ctx, f.manager, []uint{r1.ID, r2.ID, r3.ID})
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindForbidden, appErr.Kind)
	assert.Equal(t, []uint{r2.ID}, appErr.IDs)

	// nothing was deleted
	for _, id := range []uint{r1.ID, r2.ID, r3.ID} {
		_, err := f.requests.Get(ctx, id)
		assert.NoError(t, err)
	}

	// a clean batch goes through
	require.NoError(t, f.svc.BulkDelete(ctx, f.manager, []uint{r1.ID, r3.ID}))
	_, err = f.requests.Get(ctx, r1.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDeleteIsSoft(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	require.NoError(t, f.svc.Delete(context.Background(), f.manager, r.ID))

	row := f.requests.rows[r.ID]
	require.NotNil(t, row.DeletedAt, "row must be kept with a delete timestamp")
}

func TestCredentialsRoundTrip(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	ctx := context.Background()

	err := f.svc.AttachCredentials(ctx, f.manager, r.ID, "hunter2")
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	require.NoError(t, f.svc.AttachCredentials(ctx, f.accountant, r.ID, "hunter2"))

	// requester notified about availability, never the content
	msgs := f.notifier.users["u-manager"]
	require.NotEmpty(t, msgs)
	assert.NotContains(t, msgs[len(msgs)-1], "hunter2")

	got, err := f.svc.ReadCredentials(ctx, f.manager, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	got, err = f.svc.ReadCredentials(ctx, f.admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	_, err = f.svc.ReadCredentials(ctx, f.other, r.ID)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestDecideRenewal(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusActive})
	require.NoError(t, err)

	renew := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	row, err := f.requests.Get(ctx, r.ID)
	require.NoError(t, err)
	row.RenewalDate = &renew
	_, err = f.requests.Update(ctx, row)
	require.NoError(t, err)

	got, err := f.svc.DecideRenewal(ctx, f.accountant, r.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, renew.AddDate(0, 1, 0), *got.RenewalDate)

	got, err = f.svc.DecideRenewal(ctx, f.accountant, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
}

func TestDecideRenewalOwnerMayAnswer(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.accountant, r.ID, Decision{NewStatus: models.StatusActive})
	require.NoError(t, err)

	// an unrelated manager may not answer someone else's reminder
	_, err = f.svc.DecideRenewal(ctx, f.other, r.ID, true)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	// the requester who received the reminder may
	got, err := f.svc.DecideRenewal(ctx, f.manager, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
}

func TestCommentsThread(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	ctx := context.Background()

	_, err := f.svc.AddComment(ctx, f.manager, r.ID, "need this for onboarding")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, f.accountant, r.ID, "checking with finance")
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.other, r.ID, "drive-by")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	thread, err := f.svc.Comments(ctx, f.manager, r.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "need this for onboarding", thread[0].Body)
}

func TestAuditTrailWritten(t *testing.T) {
	f := newFixture()
	r := f.create(t, "10")
	_, err := f.svc.UpdateStatus(context.Background(), f.accountant, r.ID, Decision{NewStatus: models.StatusApproved})
	require.NoError(t, err)

	var actions []string
	for _, e := range f.audit.entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"request.create", "request.status"}, actions)
}
