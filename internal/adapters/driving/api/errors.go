package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps a domain error onto a status code and error code.
// "rephrase" asks the user to change the question; "degraded" means the
// sources are down and retrying later may help.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQueryTooShort):
		writeMessage(w, http.StatusBadRequest, "rephrase",
			"The question is too short to answer. Please rephrase it or add more detail.")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownSource):
		writeMessage(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrRateLimited):
		writeMessage(w, http.StatusServiceUnavailable, "degraded",
			"The knowledge sources are unavailable right now. Please try again shortly.")
	case errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusGatewayTimeout, "timeout", "The request took too long.")
	case errors.Is(err, context.Canceled):
		// The client went away; nothing useful can be written.
		logger.Debug("api: request cancelled: %v", err)
	default:
		logger.Error("api: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("api: write response: %v", err)
	}
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, field+" must be "+fe.Tag()+" "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
