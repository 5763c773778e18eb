package relay_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/relay"
)

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body          string
		hideLength    bool
		wantCode      int
		wantExtracted bool
	}{
		"within limit": {
			body:          `"small"`,
			wantCode:      http.StatusOK,
			wantExtracted: true,
		},
		"declared length over limit": {
			body:     `"` + strings.Repeat("x", 64) + `"`,
			wantCode: http.StatusRequestEntityTooLarge,
		},
		"streamed body over limit": {
			body:       `"` + strings.Repeat("x", 64) + `"`,
			hideLength: true,
			wantCode:   http.StatusRequestEntityTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			extracted := false
			r := relay.New()
			r.Use(relay.BodyLimit(16))
			relay.Post(r, "/upload", relay.StatusCode(), func(s relay.StatusSender, _ relay.Args, _ relay.Dispatcher) {
				extracted = true
				s.SendOK()
			}, relay.Body[string](http.StatusBadRequest))

			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tc.body))
			if tc.hideLength {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantExtracted, extracted)
		})
	}
}
