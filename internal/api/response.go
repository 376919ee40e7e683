package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/render"
	"github.com/gyaneshwarpardhi/flowlens/internal/report"
)

// contentTypes maps every render format name to the type it is served as.
var contentTypes = map[string]string{
	"":      "application/json",
	"json":  "application/json",
	"yaml":  "application/yaml",
	"text":  "text/plain; charset=utf-8",
	"human": "text/plain; charset=utf-8",
}

// writeReport renders rep in full before answering, so a render failure
// still turns into a clean 500 instead of a truncated 200.
func writeReport(w http.ResponseWriter, format string, r render.Renderer, rep *report.Report) {
	var buf bytes.Buffer
	if err := r.Render(&buf, rep); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ct, ok := contentTypes[format]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("write report failed", "format", format, "err", err)
	}
}

// statusFor maps err to the status the API answers with, or fallback when
// err carries nothing more specific.
func statusFor(err error, fallback int) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, config.ErrInvalid):
		return http.StatusUnprocessableEntity
	}
	return fallback
}

// errorResponse is the body of every non-2xx answer. RequestID repeats the
// X-Request-ID header so logs and bug reports can be matched.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: w.Header().Get(RequestIDHeader)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "status", status, "err", err)
	}
}
