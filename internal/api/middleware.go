package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/skillforge/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when
// one is supplied, and logs the request at debug level on completion.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Op().Debug("request handled",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
