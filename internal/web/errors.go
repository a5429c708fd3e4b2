package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with the technical detail and request ID, then mapped
// through core.MapError to the user message the client sees, as JSON for
// API routes and plain text otherwise.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/RAP/internal/core"
)

var (
	errProjectNotFound = errors.New("project not found")
	errUnknownSilvSys  = errors.New("unknown silvicultural system")
	errNoResult        = errors.New("no survey run loaded")
	errTableNotFound   = errors.New("table not produced by this run")
)

// webMessages extends core.MapError with errors raised by the handlers.
var webMessages = []struct {
	err error
	msg core.UserMessage
}{
	{errProjectNotFound, core.UserMessage{
		Message: "No project with that id",
		Action:  "Check the project id in /api/projects",
		Code:    "WEB001",
	}},
	{errUnknownSilvSys, core.UserMessage{
		Message: "Unknown silvicultural system",
		Action:  "Use cc or sh",
		Code:    "WEB002",
	}},
	{errNoResult, core.UserMessage{
		Message: "No survey results are loaded yet",
		Action:  "Run the survey analysis first",
		Code:    "WEB003",
	}},
	{errTableNotFound, core.UserMessage{
		Message: "That table was not produced by the last run",
		Action:  "Check that the run surveyed clusters for it",
		Code:    "WEB004",
	}},
}

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func mapError(err error) core.UserMessage {
	for _, m := range webMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return core.MapError(err)
}

// respondError logs err server-side and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
	} else {
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML writes a plain error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
