package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"subtrack/internal/apperrors"
	"subtrack/internal/auth"
	"subtrack/internal/models"
	"subtrack/internal/money"
	"subtrack/internal/workflow"
)

func requestID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("invalid request id")
	}
	return uint(id), nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apperrors.Validation("dates must be YYYY-MM-DD")
	}
	return &t, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, apperrors.Validation("invalid decimal amount")
	}
	return v, nil
}

func ListRequests(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		rows, err := d.Requests.ListVisible(r.Context(), u)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, rows)
	}
}

func GetRequest(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		u := auth.UserFromContext(r.Context())
		row, err := d.Requests.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if !u.IsStaff() && row.RequesterID != u.ID {
			respondError(w, apperrors.Forbidden("not your request"))
			return
		}
		respondJSON(w, row)
	}
}

type createRequestReq struct {
	DepartmentID uint    `json:"department_id" validate:"required"`
	PlatformName string  `json:"platform_name" validate:"required,min=1,max=200"`
	Cost         string  `json:"cost" validate:"required"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
	Frequency    string  `json:"frequency" validate:"required"`
	PlanType     *string `json:"plan_type" validate:"omitempty,max=100"`
	ExternalURL  *string `json:"external_url" validate:"omitempty,url"`
	StartDate    string  `json:"start_date"`
	RenewalDate  string  `json:"renewal_date"`
}

func CreateRequest(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequestReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		cost, err := parseMoney(req.Cost)
		if err != nil {
			respondError(w, err)
			return
		}
		freq, err := money.ParseFrequency(req.Frequency)
		if err != nil {
			respondError(w, apperrors.Validation(err.Error()))
			return
		}
		start, err := parseDate(req.StartDate)
		if err != nil {
			respondError(w, err)
			return
		}
		renewal, err := parseDate(req.RenewalDate)
		if err != nil {
			respondError(w, err)
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = "USD"
		}
		res, err := d.Workflow.Create(r.Context(), auth.UserFromContext(r.Context()), workflow.CreateInput{
			DepartmentID: req.DepartmentID,
			PlatformName: req.PlatformName,
			Cost:         cost,
			Currency:     currency,
			Frequency:    freq,
			PlanType:     req.PlanType,
			ExternalURL:  req.ExternalURL,
			StartDate:    start,
			RenewalDate:  renewal,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, res)
	}
}

type updateRequestReq struct {
	DepartmentID *uint   `json:"department_id"`
	PlatformName *string `json:"platform_name" validate:"omitempty,min=1,max=200"`
	Cost         *string `json:"cost"`
	Currency     *string `json:"currency" validate:"omitempty,len=3"`
	Frequency    *string `json:"frequency"`
	PlanType     *string `json:"plan_type" validate:"omitempty,max=100"`
	ExternalURL  *string `json:"external_url" validate:"omitempty,url"`
	StartDate    *string `json:"start_date"`
	RenewalDate  *string `json:"renewal_date"`
}

func UpdateRequest(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req updateRequestReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		in := workflow.UpdateInput{
			DepartmentID: req.DepartmentID,
			PlatformName: req.PlatformName,
			Currency:     req.Currency,
			PlanType:     req.PlanType,
			ExternalURL:  req.ExternalURL,
		}
		if req.Cost != nil {
			cost, err := parseMoney(*req.Cost)
			if err != nil {
				respondError(w, err)
				return
			}
			in.Cost = &cost
		}
		if req.Frequency != nil {
			freq, err := money.ParseFrequency(*req.Frequency)
			if err != nil {
				respondError(w, apperrors.Validation(err.Error()))
				return
			}
			in.Frequency = &freq
		}
		if req.StartDate != nil {
			start, err := parseDate(*req.StartDate)
			if err != nil {
				respondError(w, err)
				return
			}
			in.StartDate = start
		}
		if req.RenewalDate != nil {
			renewal, err := parseDate(*req.RenewalDate)
			if err != nil {
				respondError(w, err)
				return
			}
			in.RenewalDate = renewal
		}
		row, changed, err := d.Workflow.Update(r.Context(), auth.UserFromContext(r.Context()), id, in)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"request": row, "changed": changed})
	}
}

type statusReq struct {
	Status    string  `json:"status" validate:"required"`
	Reason    string  `json:"reason"`
	FinalCost *string `json:"final_cost"`
}

func UpdateRequestStatus(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req statusReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		dec := workflow.Decision{NewStatus: models.Status(req.Status), Reason: req.Reason}
		if req.FinalCost != nil {
			cost, err := parseMoney(*req.FinalCost)
			if err != nil {
				respondError(w, err)
				return
			}
			dec.FinalCost = &cost
		}
		row, err := d.Workflow.UpdateStatus(r.Context(), auth.UserFromContext(r.Context()), id, dec)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, row)
	}
}

func DeleteRequest(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := d.Workflow.Delete(r.Context(), auth.UserFromContext(r.Context()), id); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}

type bulkDeleteReq struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

func BulkDeleteRequests(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkDeleteReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		if err := d.Workflow.BulkDelete(r.Context(), auth.UserFromContext(r.Context()), req.IDs); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": len(req.IDs)})
	}
}

type credentialsReq struct {
	Credentials string `json:"credentials" validate:"required"`
}

func AttachCredentials(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req credentialsReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		if err := d.Workflow.AttachCredentials(r.Context(), auth.UserFromContext(r.Context()), id, req.Credentials); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"stored": true})
	}
}

func ReadCredentials(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		plaintext, err := d.Workflow.ReadCredentials(r.Context(), auth.UserFromContext(r.Context()), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"credentials": plaintext})
	}
}

type paymentReq struct {
	ExchangeRate *string `json:"exchange_rate"`
	LocalCost    *string `json:"local_cost"`
	PaymentCard  *string `json:"payment_card" validate:"omitempty,max=50"`
}

func SetPaymentInfo(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req paymentReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		in := workflow.PaymentInput{PaymentCard: req.PaymentCard}
		if req.ExchangeRate != nil {
			rate, err := parseMoney(*req.ExchangeRate)
			if err != nil {
				respondError(w, err)
				return
			}
			in.ExchangeRate = &rate
		}
		if req.LocalCost != nil {
			local, err := parseMoney(*req.LocalCost)
			if err != nil {
				respondError(w, err)
				return
			}
			in.LocalCost = &local
		}
		row, err := d.Workflow.SetPaymentInfo(r.Context(), auth.UserFromContext(r.Context()), id, in)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, row)
	}
}

type renewalReq struct {
	Accept bool `json:"accept"`
}

func DecideRenewal(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req renewalReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		row, err := d.Workflow.DecideRenewal(r.Context(), auth.UserFromContext(r.Context()), id, req.Accept)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, row)
	}
}

type commentReq struct {
	Body string `json:"body" validate:"required,min=1,max=2000"`
}

func AddComment(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req commentReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		c, err := d.Workflow.AddComment(r.Context(), auth.UserFromContext(r.Context()), id, req.Body)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, c)
	}
}

func ListComments(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		thread, err := d.Workflow.Comments(r.Context(), auth.UserFromContext(r.Context()), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, thread)
	}
}

const maxAttachmentSize = 10 << 20 // 10 MiB

// UploadAttachment stores the file in the object store and saves only the
// returned key on the request.
func UploadAttachment(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		u := auth.UserFromContext(r.Context())
		row, err := d.Requests.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := workflow.CanModify(u, row); err != nil {
			respondError(w, err)
			return
		}
		if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
			respondError(w, apperrors.Validation("multipart form expected"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, apperrors.Validation("file field is required"))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize))
		if err != nil {
			respondError(w, apperrors.Dependency("attachment read", err))
			return
		}
		key, err := d.Attachments.Upload(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
		if err != nil {
			respondError(w, apperrors.Dependency("attachment upload", err))
			return
		}
		row.AttachmentKey = &key
		if _, err := d.Requests.Update(r.Context(), row); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"attachment_key": key})
	}
}

// AttachmentURL returns a temporary download link.
func AttachmentURL(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := requestID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		u := auth.UserFromContext(r.Context())
		row, err := d.Requests.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if !u.IsStaff() && row.RequesterID != u.ID {
			respondError(w, apperrors.Forbidden("not your request"))
			return
		}
		if row.AttachmentKey == nil {
			respondError(w, apperrors.NotFound("attachment"))
			return
		}
		url, err := d.Attachments.PresignedURL(r.Context(), *row.AttachmentKey, time.Hour)
		if err != nil {
			respondError(w, apperrors.Dependency("attachment presign", err))
			return
		}
		respondJSON(w, map[string]any{"url": url})
	}
}
