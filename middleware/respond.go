package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	goGate "github.com/MrEthical07/goGate"
)

// ErrorEnvelope is the body of every rejected request.
type ErrorEnvelope struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError renders err as an ErrorEnvelope. Errors that are not
// [*goGate.Error] values are logged and rendered as internal errors.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var gerr *goGate.Error
	if !errors.As(err, &gerr) || gerr.Kind == goGate.KindInternal {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed",
			"request_id", goGate.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	gerr = goGate.AsError(err)

	if gerr.Kind == goGate.KindRateLimit && gerr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(gerr.RetryAfter))
	}
	writeJSON(w, gerr.Status(), ErrorEnvelope{
		Error:     gerr.Message,
		Code:      string(gerr.Code),
		RequestID: goGate.RequestIDFromContext(r.Context()),
	})
}

// WriteJSON writes v with status as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setRateHeaders(w http.ResponseWriter, d goGate.RateDecision) {
	if d.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}
