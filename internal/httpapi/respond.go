package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/landledger/internal/engine"
)

type errorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    string(engine.CodeInvalidArgument),
		Kind:    string(engine.KindValidation),
		Message: msg,
	}})
}

// statusOf maps a typed failure to its HTTP status.
func statusOf(e *engine.Error) int {
	switch e.Kind {
	case engine.KindValidation:
		if e.Code == engine.CodeNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindState:
		return http.StatusConflict
	case engine.KindAllowance:
		return http.StatusPaymentRequired
	case engine.KindPaused:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err. Infrastructure errors are logged and hidden.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var typed *engine.Error
	if errors.As(err, &typed) {
		writeJSON(w, statusOf(typed), errorBody{Error: errorDetail{
			Code:    string(typed.Code),
			Kind:    string(typed.Kind),
			Message: typed.Message,
		}})
		return
	}
	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    string(engine.CodeInternal),
		Message: "internal error",
	}})
}
