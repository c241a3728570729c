package api

import (
	"bytes"
	"log/slog"
	"net/http"
)

// IdempotencyHeader carries the client's key for a retried POST.
const IdempotencyHeader = "Idempotency-Key"

// responseRecorder captures response status and body for idempotency caching.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotencyMiddleware replays the stored response of a POST carrying an
// already seen Idempotency-Key. Keys are scoped to method and path. Server
// errors are not stored so the client can retry them.
func (h *Handler) idempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		scoped := r.Method + " " + r.URL.Path + " " + key

		cached, found, err := h.store.CheckIdempotency(r.Context(), scoped)
		if err != nil {
			MapError(w, r, err)
			return
		}
		if found {
			contentType := "application/json"
			if cached.Status >= 400 {
				contentType = "application/problem+json"
			}
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(cached.Status)
			w.Write(cached.Body)
			slog.Info("idempotent replay",
				"component", "api",
				"action", "idempotent_replay",
				"path", r.URL.Path,
				"request_id", GetRequestID(r.Context()),
			)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.statusCode >= 500 {
			return
		}
		if err := h.store.RecordIdempotency(r.Context(), scoped, rec.statusCode, rec.body.Bytes(), h.idempotencyTTL); err != nil {
			slog.Warn("failed to cache idempotent response",
				"component", "api",
				"path", r.URL.Path,
				"error", err,
			)
		}
	})
}
