package relay

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code and size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter (supports http.ResponseController).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// routeNote lets the router report the matched route back to Logger.
type routeNote struct {
	route string
}

// noteRoute records the matched route if Logger is installed.
func noteRoute(r *http.Request, rt Route) {
	if note, ok := GetValue[*routeNote](r.Context()); ok {
		note.route = rt.String()
	}
}

// Logger returns middleware that logs each request using the provided slog.Logger.
// Requests answered with a 5xx are logged at error level.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			note := &routeNote{}
			next.ServeHTTP(rec, SetValue(r, note))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("latency", time.Since(start)),
				slog.Int("size", rec.size),
				slog.String("remote", r.RemoteAddr),
			}
			if note.route != "" {
				attrs = append(attrs, LabelRoute.L(note.route))
			}
			if id := GetRequestID(r); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}
