package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"subtrack/internal/apperrors"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	IDs     []uint `json:"ids,omitempty"`
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidState:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity
	case apperrors.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps the error taxonomy to HTTP statuses with a structured
// JSON body. Unclassified errors surface as a generic 500.
func respondError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorBody{Error: "internal", Message: "internal error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(appErr.Kind))
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   string(appErr.Kind),
		Message: appErr.Message,
		IDs:     appErr.IDs,
	})
}

// decodeValid decodes the body into a tagged input struct and runs the
// validator over it.
func decodeValid(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validation("malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperrors.Validation(err.Error())
	}
	return nil
}
