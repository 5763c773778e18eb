package relay

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// requestID is the context type for the request ID, so it can be read with
// GetValue and the ContextValue extractor machinery.
type requestID string

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	Header    string        // default: "X-Request-ID"
	Generator func() string // default: random hex
}

// RequestID returns middleware that assigns a unique request ID to each request.
// The ID is read from the request header (if present) or generated.
// It is stored in the context and set on the response header.
func RequestID(cfg ...RequestIDConfig) Middleware {
	c := RequestIDConfig{
		Header:    "X-Request-ID",
		Generator: defaultIDGenerator,
	}
	if len(cfg) > 0 {
		if cfg[0].Header != "" {
			c.Header = cfg[0].Header
		}
		if cfg[0].Generator != nil {
			c.Generator = cfg[0].Generator
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(c.Header)
			if id == "" {
				id = c.Generator()
			}
			w.Header().Set(c.Header, id)
			next.ServeHTTP(w, SetValue(r, requestID(id)))
		})
	}
}

// GetRequestID returns the request ID assigned by RequestID, or "".
func GetRequestID(r *http.Request) string {
	id, _ := GetValue[requestID](r.Context())
	return string(id)
}

// RequestIDParam extracts the request ID as a handler argument, failing with
// 500 when the RequestID middleware is not installed.
func RequestIDParam() Param[string] {
	return Extract("request_id", func(r *http.Request) Result[string] {
		id, ok := GetValue[requestID](r.Context())
		if !ok {
			return Empty[string](http.StatusInternalServerError)
		}
		return Of(string(id))
	})
}

func defaultIDGenerator() string {
	b := make([]byte, 16)
	//nolint:errcheck,gosec // crypto/rand.Read always returns nil error
	rand.Read(b)
	return hex.EncodeToString(b)
}
