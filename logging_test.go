package relay_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/relay"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		handlerStatus int
		wantSubstr    []string
	}{
		"request is logged": {
			handlerStatus: http.StatusOK,
			wantSubstr:    []string{"msg=request", "method=GET", "path=/test-log", "status=200", "level=INFO"},
		},
		"status code is captured": {
			handlerStatus: http.StatusCreated,
			wantSubstr:    []string{"status=201"},
		},
		"server errors log at error level": {
			handlerStatus: http.StatusBadGateway,
			wantSubstr:    []string{"status=502", "level=ERROR"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			handler := relay.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.handlerStatus)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test-log", nil))

			for _, s := range tc.wantSubstr {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestLogger_routeAndRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := relay.New(relay.WithLogger(logger))
	r.Use(relay.RequestID(relay.RequestIDConfig{Generator: func() string { return "req-1" }}))
	r.Use(relay.Logger(logger))
	relay.Get(r, "/items/list", relay.StatusCode(), okHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/list", nil))

	assert.Contains(t, buf.String(), `route="GET /items/list"`)
	assert.Contains(t, buf.String(), "request_id=req-1")
}

func TestLogger_unrouted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := relay.New(relay.WithLogger(logger))
	r.Use(relay.Logger(logger))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Contains(t, buf.String(), "status=404")
	assert.NotContains(t, buf.String(), "route=")
}
