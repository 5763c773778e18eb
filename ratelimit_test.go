package relay_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

func TestRateLimit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rate           float64
		burst          int
		numReqs        int
		wantOK         int
		wantLimited    int
		wantRetryAfter string
	}{
		"requests within rate succeed": {
			rate:        100,
			burst:       10,
			numReqs:     5,
			wantOK:      5,
			wantLimited: 0,
		},
		"requests exceeding rate get 429": {
			rate:           1,
			burst:          1,
			numReqs:        5,
			wantOK:         1,
			wantLimited:    4,
			wantRetryAfter: "1",
		},
		"slow rate rounds retry up": {
			rate:           0.25,
			burst:          2,
			numReqs:        3,
			wantOK:         2,
			wantLimited:    1,
			wantRetryAfter: "4",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mw := relay.RateLimit(relay.RateLimitConfig{
				Rate:       tc.rate,
				Burst:      tc.burst,
				Clock:      clockz.NewFakeClock(),
				MetricSink: &metrics.BlackholeSink{},
			})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			okCount, limitedCount := 0, 0
			for range tc.numReqs {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

				switch w.Code {
				case http.StatusOK:
					okCount++
				case http.StatusTooManyRequests:
					limitedCount++
					assert.Equal(t, tc.wantRetryAfter, w.Header().Get("Retry-After"))
					assert.Empty(t, w.Body.String())
				}
			}

			assert.Equal(t, tc.wantOK, okCount, "expected OK responses")
			assert.Equal(t, tc.wantLimited, limitedCount, "expected rate-limited responses")
		})
	}
}

func TestRateLimit_refills(t *testing.T) {
	t.Parallel()

	clock := clockz.NewFakeClock()
	handler := relay.RateLimit(relay.RateLimitConfig{Rate: 1, Burst: 1, Clock: clock})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	serve := func() int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve())
	assert.Equal(t, http.StatusTooManyRequests, serve())

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, serve())
}

func TestRateLimit_keyFunc(t *testing.T) {
	t.Parallel()

	sink := metrics.NewInmemSink(time.Hour, time.Hour)
	handler := relay.RateLimit(relay.RateLimitConfig{
		Rate:       1,
		Burst:      1,
		Clock:      clockz.NewFakeClock(),
		MetricSink: sink,
		KeyFunc:    func(r *http.Request) string { return r.Header.Get("X-API-Key") },
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve := func(key string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-API-Key", key)
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("a"))
	assert.Equal(t, http.StatusOK, serve("b"))
	assert.Equal(t, http.StatusTooManyRequests, serve("a"))
	assert.Equal(t, float64(1), relaytest.CounterTotal(sink, relay.MetricRelayRateLimitedCount, relay.LabelKey.M("a")))
}
