package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/antozhu/manhunt/internal/errs"
)

// errorBody is the uniform error envelope. Stack traces never leak.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the error taxonomy to a status code. This is the only
// place in the server that does so.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindAntiCheat:
		status = http.StatusBadRequest
	case errs.KindUnauthorized:
		status = http.StatusForbidden
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindPersistence:
		status = http.StatusInternalServerError
	}

	msg := "internal error"
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Message: msg, Code: errs.CodeOf(err)})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Validation("MALFORMED_JSON", "decoding request body: %v", err)
	}
	return nil
}
