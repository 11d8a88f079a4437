package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/foundkeep/foundkeep/internal/lifecycle"
)

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// jsonData writes a successful response carrying a single object.
func jsonData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// jsonList writes a successful response carrying a collection plus its count.
func jsonList(w http.ResponseWriter, status int, data any, count int) {
	writeJSON(w, status, envelope{Success: true, Data: data, Count: &count})
}

// jsonMessage writes a successful response carrying only a message.
func jsonMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

// jsonError writes an error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// engineError translates a lifecycle error into the HTTP taxonomy:
// validation and illegal transitions are 400, missing items 404, missing
// capability 401, everything else a logged 500.
func engineError(w http.ResponseWriter, err error) {
	var verr *lifecycle.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		jsonError(w, http.StatusBadRequest, "item is not in a state that allows this operation")
	case errors.Is(err, lifecycle.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, lifecycle.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, "not authorized")
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
// An empty body is reported as io.EOF for callers that allow it.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(target)
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return err
}
