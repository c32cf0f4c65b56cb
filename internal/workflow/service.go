package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"subtrack/internal/apperrors"
	"subtrack/internal/budget"
	"subtrack/internal/models"
	"subtrack/internal/money"
)

// RequestRepo is the persistence contract for requests. Update returns the
// previous row state so callers can diff fields and compare statuses.
type RequestRepo interface {
	Get(ctx context.Context, id uint) (*models.Request, error)
	ListByDepartment(ctx context.Context, deptID uint) ([]models.Request, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Request, error)
	Create(ctx context.Context, r *models.Request) error
	Update(ctx context.Context, r *models.Request) (*models.Request, error)
	SoftDeleteAll(ctx context.Context, ids []uint, at time.Time) error
}

type DepartmentRepo interface {
	Get(ctx context.Context, id uint) (*models.Department, error)
	ManagerAssigned(ctx context.Context, deptID uint, userID string) (bool, error)
}

type CommentRepo interface {
	Create(ctx context.Context, c *models.RequestComment) error
	ListByRequest(ctx context.Context, requestID uint) ([]models.RequestComment, error)
}

type AuditRepo interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// Notifier delivers out-of-band messages. Implementations must treat sends
// as best-effort; the service logs failures and never propagates them.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, text string) error
	NotifyStaff(ctx context.Context, text string) error
}

// Cipher protects stored credentials.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Service struct {
	requests    RequestRepo
	departments DepartmentRepo
	comments    CommentRepo
	audit       AuditRepo
	notifier    Notifier
	cipher      Cipher
	lg          *zap.SugaredLogger
	now         func() time.Time
}

func NewService(requests RequestRepo, departments DepartmentRepo, comments CommentRepo, audit AuditRepo, notifier Notifier, cipher Cipher, lg *zap.SugaredLogger) *Service {
	return &Service{
		requests:    requests,
		departments: departments,
		comments:    comments,
		audit:       audit,
		notifier:    notifier,
		cipher:      cipher,
		lg:          lg,
		now:         time.Now,
	}
}

type CreateInput struct {
	DepartmentID uint
	PlatformName string
	Cost         decimal.Decimal
	Currency     string
	Frequency    money.Frequency
	PlanType     *string
	ExternalURL  *string
	StartDate    *time.Time
	RenewalDate  *time.Time
}

type CreateResult struct {
	Request *models.Request `json:"request"`
	// BudgetWarning flags that this request pushes the department past its
	// monthly budget. Advisory only; creation is never blocked by it.
	BudgetWarning bool `json:"budget_warning"`
}

// Create persists a new PENDING request for the actor. Managers must hold an
// assignment to the target department; staff may file for any department.
func (s *Service) Create(ctx context.Context, actor *models.User, in CreateInput) (*CreateResult, error) {
	if in.Cost.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("cost must be positive")
	}
	if !in.Frequency.Valid() {
		return nil, apperrors.Validation("unknown payment frequency")
	}
	dept, err := s.departments.Get(ctx, in.DepartmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleManager {
		assigned, err := s.departments.ManagerAssigned(ctx, dept.ID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, apperrors.Forbidden("you are not assigned to this department")
		}
	}

	existing, err := s.requests.ListByDepartment(ctx, dept.ID)
	if err != nil {
		return nil, err
	}
	warning := budget.CheckLive(*dept, existing, in.Cost)

	r := &models.Request{
		PlatformName: strings.TrimSpace(in.PlatformName),
		Cost:         in.Cost,
		Currency:     in.Currency,
		Frequency:    in.Frequency,
		Status:       models.StatusPending,
		DepartmentID: dept.ID,
		RequesterID:  actor.ID,
		PlanType:     in.PlanType,
		ExternalURL:  in.ExternalURL,
		StartDate:    in.StartDate,
		RenewalDate:  in.RenewalDate,
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, err
	}

	s.record(ctx, actor.ID, "request.create", r.ID, map[string]any{"platform": r.PlatformName})
	text := fmt.Sprintf("New request #%d: %s for %s (%s %s, %s)",
		r.ID, r.PlatformName, dept.Name, r.Cost.StringFixed(2), r.Currency, r.Frequency)
	if warning {
		text += " — over budget"
	}
	s.tellStaff(ctx, text)

	return &CreateResult{Request: r, BudgetWarning: warning}, nil
}

// UpdateStatus applies a staff decision to a request.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.User, id uint, dec Decision) (*models.Request, error) {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(actor, r.Status, dec); err != nil {
		return nil, err
	}
	prevStatus := r.Status
	ApplyTransition(r, dec)
	prev, err := s.requests.Update(ctx, r)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor.ID, "request.status", r.ID, map[string]any{
		"from": string(prev.Status), "to": string(r.Status),
	})

	// reversals of an earlier verdict read differently from first decisions
	var text string
	if prevStatus.Decided() {
		text = fmt.Sprintf("Decision on request #%d (%s) changed: %s → %s", r.ID, r.PlatformName, prevStatus, r.Status)
	} else {
		text = fmt.Sprintf("Request #%d (%s) is now %s", r.ID, r.PlatformName, r.Status)
	}
	if r.Status == models.StatusRejected && r.RejectionReason != nil {
		text += fmt.Sprintf(" — reason: %s", *r.RejectionReason)
	}
	s.tellUser(ctx, r.RequesterID, text)

	return r, nil
}

type UpdateInput struct {
	DepartmentID *uint
	PlatformName *string
	Cost         *decimal.Decimal
	Currency     *string
	Frequency    *money.Frequency
	PlanType     *string
	ExternalURL  *string
	StartDate    *time.Time
	RenewalDate  *time.Time
}

// Update lets the owning manager revise a still-PENDING request. The status
// is reset to PENDING (a no-op while pending, kept explicit for re-review
// semantics) and every field whose value actually changed is reported.
func (s *Service) Update(ctx context.Context, actor *models.User, id uint, in UpdateInput) (*models.Request, []string, error) {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := CanModify(actor, r); err != nil {
		return nil, nil, err
	}

	var changed []string
	if in.DepartmentID != nil && *in.DepartmentID != r.DepartmentID {
		assigned, err := s.departments.ManagerAssigned(ctx, *in.DepartmentID, actor.ID)
		if err != nil {
			return nil, nil, err
		}
		if !assigned {
			return nil, nil, apperrors.Forbidden("you are not assigned to the target department")
		}
		r.DepartmentID = *in.DepartmentID
		changed = append(changed, "department")
	}
	if in.PlatformName != nil && strings.TrimSpace(*in.PlatformName) != r.PlatformName {
		r.PlatformName = strings.TrimSpace(*in.PlatformName)
		changed = append(changed, "platform_name")
	}
	if in.Cost != nil && !in.Cost.Equal(r.Cost) {
		if in.Cost.LessThanOrEqual(decimal.Zero) {
			return nil, nil, apperrors.Validation("cost must be positive")
		}
		r.Cost = *in.Cost
		changed = append(changed, "cost")
	}
	if in.Currency != nil && *in.Currency != r.Currency {
		r.Currency = *in.Currency
		changed = append(changed, "currency")
	}
	if in.Frequency != nil && *in.Frequency != r.Frequency {
		if !in.Frequency.Valid() {
			return nil, nil, apperrors.Validation("unknown payment frequency")
		}
		r.Frequency = *in.Frequency
		changed = append(changed, "frequency")
	}
	if in.PlanType != nil && !eqStrPtr(in.PlanType, r.PlanType) {
		r.PlanType = in.PlanType
		changed = append(changed, "plan_type")
	}
	if in.ExternalURL != nil && !eqStrPtr(in.ExternalURL, r.ExternalURL) {
		r.ExternalURL = in.ExternalURL
		changed = append(changed, "external_url")
	}
	if in.StartDate != nil && !eqTimePtr(in.StartDate, r.StartDate) {
		r.StartDate = in.StartDate
		changed = append(changed, "start_date")
	}
	if in.RenewalDate != nil && !eqTimePtr(in.RenewalDate, r.RenewalDate) {
		r.RenewalDate = in.RenewalDate
		changed = append(changed, "renewal_date")
	}

	if len(changed) == 0 {
		return r, nil, nil
	}

	r.Status = models.StatusPending
	if _, err := s.requests.Update(ctx, r); err != nil {
		return nil, nil, err
	}

	s.record(ctx, actor.ID, "request.update", r.ID, map[string]any{"changed": changed})
	s.tellStaff(ctx, fmt.Sprintf("Request #%d (%s) edited by its manager, changed: %s",
		r.ID, r.PlatformName, strings.Join(changed, ", ")))

	return r, changed, nil
}

// Delete soft-deletes one request owned by the actor.
func (s *Service) Delete(ctx context.Context, actor *models.User, id uint) error {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CanModify(actor, r); err != nil {
		return err
	}
	if err := s.requests.SoftDeleteAll(ctx, []uint{id}, s.now()); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "request.delete", id, nil)
	s.tellStaff(ctx, fmt.Sprintf("Request #%d (%s) withdrawn by its manager", r.ID, r.PlatformName))
	return nil
}

// BulkDelete soft-deletes all ids or none: every id must exist, belong to
// the actor and still be PENDING, otherwise the whole batch fails and the
// offending ids are reported.
func (s *Service) BulkDelete(ctx context.Context, actor *models.User, ids []uint) error {
	if len(ids) == 0 {
		return apperrors.Validation("no request ids supplied")
	}
	found, err := s.requests.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uint]models.Request, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	var offending []uint
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || r.RequesterID != actor.ID || r.Status != models.StatusPending {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		sort.Slice(offending, func(i, j int) bool { return offending[i] < offending[j] })
		return apperrors.ForbiddenIDs("some requests cannot be deleted", offending)
	}

	if err := s.requests.SoftDeleteAll(ctx, ids, s.now()); err != nil {
		return err
	}
	for _, id := range ids {
		s.record(ctx, actor.ID, "request.delete", id, map[string]any{"bulk": true})
	}
	s.tellStaff(ctx, fmt.Sprintf("%d requests withdrawn in bulk", len(ids)))
	return nil
}

// AttachCredentials encrypts and stores access credentials for a request and
// tells the requester they are available (never their content).
func (s *Service) AttachCredentials(ctx context.Context, actor *models.User, id uint, plaintext string) error {
	if !actor.IsStaff() {
		return apperrors.Unauthorized("only accountants and admins may store credentials")
	}
	if plaintext == "" {
		return apperrors.Validation("credentials must not be empty")
	}
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return err
	}
	enc, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return apperrors.Dependency("credential encryption", err)
	}
	r.CredentialsEnc = &enc
	if _, err := s.requests.Update(ctx, r); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "request.credentials", r.ID, nil)
	s.tellUser(ctx, r.RequesterID, fmt.Sprintf("Access credentials for %s (request #%d) are available", r.PlatformName, r.ID))
	return nil
}

// ReadCredentials decrypts stored credentials for the owning manager or any
// staff member.
func (s *Service) ReadCredentials(ctx context.Context, actor *models.User, id uint) (string, error) {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !actor.IsStaff() && r.RequesterID != actor.ID {
		return "", apperrors.Unauthorized("credentials are restricted to the requester and staff")
	}
	if r.CredentialsEnc == nil {
		return "", apperrors.NotFound("credentials")
	}
	plaintext, err := s.cipher.Decrypt(*r.CredentialsEnc)
	if err != nil {
		return "", apperrors.Decryption(err)
	}
	return plaintext, nil
}

type PaymentInput struct {
	ExchangeRate *decimal.Decimal
	LocalCost    *decimal.Decimal
	PaymentCard  *string
}

// SetPaymentInfo annotates a request with payment metadata.
func (s *Service) SetPaymentInfo(ctx context.Context, actor *models.User, id uint, in PaymentInput) (*models.Request, error) {
	if !actor.IsStaff() {
		return nil, apperrors.Unauthorized("only accountants and admins may edit payment info")
	}
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ExchangeRate != nil {
		r.ExchangeRate = in.ExchangeRate
	}
	if in.LocalCost != nil {
		r.LocalCost = in.LocalCost
	}
	if in.PaymentCard != nil {
		r.PaymentCard = in.PaymentCard
	}
	if _, err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	s.record(ctx, actor.ID, "request.payment", r.ID, nil)
	s.tellUser(ctx, r.RequesterID, fmt.Sprintf("Payment info updated for %s (request #%d)", r.PlatformName, r.ID))
	return r, nil
}

// DecideRenewal handles the renewal prompt answer: accept keeps the request
// ACTIVE and rolls the renewal date forward a period; decline expires it.
// This is the only path into EXPIRED.
func (s *Service) DecideRenewal(ctx context.Context, actor *models.User, id uint, accept bool) (*models.Request, error) {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// renewal reminders go to the requester, so the owner decides too
	if !actor.IsStaff() && r.RequesterID != actor.ID {
		return nil, apperrors.Unauthorized("only staff or the requester may decide renewals")
	}
	if r.Status != models.StatusActive {
		return nil, apperrors.InvalidState("only active subscriptions renew")
	}
	if accept {
		if r.RenewalDate != nil {
			var next time.Time
			if r.Frequency == money.Yearly {
				next = r.RenewalDate.AddDate(1, 0, 0)
			} else {
				next = r.RenewalDate.AddDate(0, 1, 0)
			}
			r.RenewalDate = &next
		}
	} else {
		r.Status = models.StatusExpired
	}
	if _, err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	verdict := "renewed"
	if !accept {
		verdict = "expired"
	}
	s.record(ctx, actor.ID, "request.renewal", r.ID, map[string]any{"accepted": accept})
	s.tellUser(ctx, r.RequesterID, fmt.Sprintf("Subscription %s (request #%d) %s", r.PlatformName, r.ID, verdict))
	return r, nil
}

// AddComment appends to the request's immutable comment thread.
func (s *Service) AddComment(ctx context.Context, actor *models.User, id uint, body string) (*models.RequestComment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.Validation("comment body must not be empty")
	}
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && r.RequesterID != actor.ID {
		return nil, apperrors.Forbidden("comments are restricted to the requester and staff")
	}
	c := &models.RequestComment{RequestID: r.ID, AuthorID: actor.ID, Body: strings.TrimSpace(body)}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Comments(ctx context.Context, actor *models.User, id uint) ([]models.RequestComment, error) {
	r, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && r.RequesterID != actor.ID {
		return nil, apperrors.Forbidden("comments are restricted to the requester and staff")
	}
	return s.comments.ListByRequest(ctx, r.ID)
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// record writes an audit entry. Audit failures are logged, not propagated:
// the state change already happened and remains the source of truth.
func (s *Service) record(ctx context.Context, actorID, action string, targetID uint, meta map[string]any) {
	entry := &models.AuditLog{ActorID: &actorID, Action: action, TargetID: &targetID}
	if meta != nil {
		entry.Metadata = models.Meta(meta)
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.lg.Errorw("audit record failed", "action", action, "target", targetID, "error", err)
	}
}

func (s *Service) tellStaff(ctx context.Context, text string) {
	if err := s.notifier.NotifyStaff(ctx, text); err != nil {
		s.lg.Warnw("staff notification failed", "error", err)
	}
}

func (s *Service) tellUser(ctx context.Context, userID, text string) {
	if err := s.notifier.NotifyUser(ctx, userID, text); err != nil {
		s.lg.Warnw("user notification failed", "user", userID, "error", err)
	}
}
