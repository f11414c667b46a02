package web

// errors.go turns service errors into responses. The technical error is
// logged with the request id; the client gets the mapped UserMessage as
// JSON, or as an HTML fragment for HTMX requests.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/courierimport/internal/core"
	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/web/templates"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON body of every API error. Result carries the
// partial counts when an import stopped after committing some batches.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Result  any    `json:"result,omitempty"`
}

// statusFor picks the HTTP status of a service error.
func statusFor(err error) int {
	var commitErr *core.CommitError
	switch {
	case errors.Is(err, core.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTableBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidOption), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case core.IsStructural(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &commitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user message with the status
// statusFor picks.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, result any) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render error alert", "error", err)
		}
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Result:  result,
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
