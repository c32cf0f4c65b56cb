package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"subtrack/internal/apperrors"
	"subtrack/internal/auth"
	"subtrack/internal/models"
)

func ListUsers(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := d.Users.List(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, users)
	}
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"max=200"`
	Role     string `json:"role" validate:"required,oneof=ADMIN ACCOUNTANT MANAGER"`
	Language string `json:"language" validate:"omitempty,len=2"`
}

func CreateUser(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, err)
			return
		}
		u := models.User{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			FullName:     req.FullName,
			Role:         req.Role,
			IsActive:     true,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if req.Language != "" {
			u.Language = req.Language
		}
		if err := d.Users.Create(r.Context(), &u); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"id": u.ID})
	}
}

type updateUserReq struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN ACCOUNTANT MANAGER"`
	Language *string `json:"language" validate:"omitempty,len=2"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func UpdateUser(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateUserReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		u, err := d.Users.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}
		if req.Email != nil {
			u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.FullName != nil {
			u.FullName = *req.FullName
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.Language != nil {
			u.Language = *req.Language
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.Password != nil {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, err)
				return
			}
			u.PasswordHash = hash
		}
		u.UpdatedAt = time.Now()
		if err := d.Users.Update(r.Context(), u); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteUser(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == auth.Subject(r.Context()) {
			respondError(w, apperrors.InvalidState("you cannot delete your own account"))
			return
		}
		if err := d.Users.Delete(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
