package relay

import "net/http"

// BodyLimit returns middleware that caps request bodies at maxBytes. A
// declared Content-Length over the limit is answered with 413 before the
// pipeline runs; a body that turns out larger makes Body extractors fail
// with 413.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
