package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"subtrack/internal/apperrors"
	"subtrack/internal/auth"
	"subtrack/internal/models"
)

func deptID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("invalid department id")
	}
	return uint(id), nil
}

func ListDepartments(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u.IsStaff() {
			depts, err := d.Departments.List(r.Context())
			if err != nil {
				respondError(w, err)
				return
			}
			respondJSON(w, depts)
			return
		}
		depts, err := d.Departments.ListForManager(r.Context(), u.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, depts)
	}
}

type createDepartmentReq struct {
	Name             string  `json:"name" validate:"required,min=1,max=200"`
	MonthlyBudget    string  `json:"monthly_budget" validate:"required"`
	Currency         string  `json:"currency" validate:"omitempty,len=3"`
	PrimaryManagerID *string `json:"primary_manager_id" validate:"omitempty,uuid"`
}

func CreateDepartment(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDepartmentReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		budgetAmount, err := decimal.NewFromString(req.MonthlyBudget)
		if err != nil || budgetAmount.IsNegative() {
			respondError(w, apperrors.Validation("monthly_budget must be a non-negative decimal"))
			return
		}
		dept := models.Department{
			Name:             strings.TrimSpace(req.Name),
			MonthlyBudget:    budgetAmount,
			PrimaryManagerID: req.PrimaryManagerID,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		if req.Currency != "" {
			dept.Currency = strings.ToUpper(req.Currency)
		}
		if err := d.Departments.Create(r.Context(), &dept); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dept)
	}
}

type updateDepartmentReq struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=200"`
	MonthlyBudget    *string `json:"monthly_budget"`
	Currency         *string `json:"currency" validate:"omitempty,len=3"`
	PrimaryManagerID *string `json:"primary_manager_id" validate:"omitempty,uuid"`
}

func UpdateDepartment(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deptID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req updateDepartmentReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		dept, err := d.Departments.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if req.Name != nil {
			dept.Name = strings.TrimSpace(*req.Name)
		}
		if req.MonthlyBudget != nil {
			amount, err := decimal.NewFromString(*req.MonthlyBudget)
			if err != nil || amount.IsNegative() {
				respondError(w, apperrors.Validation("monthly_budget must be a non-negative decimal"))
				return
			}
			dept.MonthlyBudget = amount
		}
		if req.Currency != nil {
			dept.Currency = strings.ToUpper(*req.Currency)
		}
		if req.PrimaryManagerID != nil {
			dept.PrimaryManagerID = req.PrimaryManagerID
		}
		dept.UpdatedAt = time.Now()
		if err := d.Departments.Update(r.Context(), dept); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dept)
	}
}

type setManagersReq struct {
	ManagerIDs []string `json:"manager_ids" validate:"required,dive,uuid"`
}

func SetDepartmentManagers(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deptID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		var req setManagersReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		dept, err := d.Departments.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		managers := make([]models.User, 0, len(req.ManagerIDs))
		for _, uid := range req.ManagerIDs {
			u, err := d.Users.Get(r.Context(), uid)
			if err != nil {
				respondError(w, err)
				return
			}
			if u.Role != models.RoleManager {
				respondError(w, apperrors.Validation("user "+uid+" is not a manager"))
				return
			}
			managers = append(managers, *u)
		}
		if err := d.Departments.SetManagers(r.Context(), dept, managers); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteDepartment(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deptID(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := d.Departments.Delete(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
