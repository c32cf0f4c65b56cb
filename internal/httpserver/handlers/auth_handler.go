package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"subtrack/internal/apperrors"
	"subtrack/internal/auth"
	"subtrack/internal/models"
)

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(d Deps, db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		u, err := d.Users.GetByEmail(r.Context(), req.Email)
		if err != nil || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
			respondError(w, apperrors.Unauthorized("invalid credentials"))
			return
		}
		if !u.IsActive {
			respondError(w, apperrors.Unauthorized("account disabled"))
			return
		}
		tok, jti, expiresAt, err := auth.Sign(u.ID, u.Role)
		if err != nil {
			d.Lg.Errorw("token sign failed", "error", err)
			respondError(w, err)
			return
		}
		sess := models.Session{JTI: jti, UserID: u.ID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
		if err := db.Create(&sess).Error; err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"token": tok, "role": u.Role})
	}
}

func Logout(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := auth.FromContext(r.Context()).JWTID
		now := time.Now()
		_ = db.Model(&models.Session{}).Where("jti = ?", jti).Update("revoked_at", now).Error
		respondJSON(w, map[string]any{"revoked": true})
	}
}

type changePasswordReq struct {
	Current string `json:"current" validate:"required"`
	New     string `json:"new" validate:"required,min=8"`
}

func ChangePassword(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decodeValid(r, &req); err != nil {
			respondError(w, err)
			return
		}
		u := auth.UserFromContext(r.Context())
		if auth.CheckPassword(u.PasswordHash, req.Current) != nil {
			respondError(w, apperrors.Unauthorized("current password is wrong"))
			return
		}
		hash, err := auth.HashPassword(req.New)
		if err != nil {
			respondError(w, err)
			return
		}
		u.PasswordHash = hash
		if err := d.Users.Update(r.Context(), u); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func Me(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		depts, err := d.Departments.ListForManager(r.Context(), u.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{
			"id": u.ID, "email": u.Email, "full_name": u.FullName,
			"role": u.Role, "language": u.Language,
			"chat_linked": u.ChatID != nil,
			"departments": depts,
		})
	}
}

// ChatToken mints a one-time token the user sends to the bot to link their
// chat. Minting again invalidates the previous token.
func ChatToken(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		token := strings.ReplaceAll(uuid.NewString(), "-", "")
		u.ChatToken = &token
		if err := d.Users.Update(r.Context(), u); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, map[string]any{"chat_token": token})
	}
}
