package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps a service error onto its HTTP status. Internal
// failures are logged with their cause and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, internalMsg string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied. This email is not authorized.")
	case errors.Is(err, service.ErrNoPassword),
		errors.Is(err, service.ErrPasswordAlreadySet):
		writeError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid password")
	case errors.Is(err, service.ErrInvalidOTP):
		writeError(w, http.StatusUnauthorized, "Invalid or expired OTP")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrDelivery):
		logger.Error("otp delivery failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send OTP")
	default:
		logger.Error(internalMsg, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, internalMsg)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
