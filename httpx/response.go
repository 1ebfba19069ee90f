package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// Usually the client went away; the status is already sent.
		l := logger.WithComponent("httpx")
		l.Debug().Err(err).Int("status", status).Msg("writing response body failed")
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Error writes err using the status and code of its apperror kind.
// Unclassified errors are logged and reported as internal_error without detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		JSONError(w, http.StatusUnprocessableEntity, apperror.ErrValidation.Error(), apperror.FieldsOf(err))
	case errors.Is(err, apperror.ErrNotFound):
		JSONError(w, http.StatusNotFound, apperror.ErrNotFound.Error(), nil)
	case errors.Is(err, apperror.ErrConflict):
		JSONError(w, http.StatusConflict, apperror.ErrConflict.Error(), map[string]string{"reason": apperror.Reason(err)})
	case errors.Is(err, apperror.ErrNumbering):
		w.Header().Set("Retry-After", "1")
		JSONError(w, http.StatusServiceUnavailable, apperror.ErrNumbering.Error(), nil)
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// Decode reads a JSON body into dst, rejecting unknown fields. It writes a 400
// response and returns false when the body cannot be decoded.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
