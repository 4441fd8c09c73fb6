package idempotency

import (
	"bytes"
	"net/http"
	"strings"
)

// responseRecorder writes through to the client while keeping a copy of the
// status and body for finalization.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// successfulJSON reports whether the captured response may be persisted as a
// cached final payload. Non-success statuses and non-JSON bodies are not
// cacheable; their keys are released instead.
func (r *responseRecorder) successfulJSON() bool {
	if r.status < 200 || r.status >= 300 {
		return false
	}
	contentType := r.Header().Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}
