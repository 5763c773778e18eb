package relay_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
)

// extract runs p against r and returns the single reported result.
func extract[A any](t *testing.T, p relay.Param[A], r *http.Request) relay.Result[A] {
	t.Helper()
	var (
		got   relay.Result[A]
		calls int
	)
	p.TryExtractAsync(r, func(res relay.Result[A]) {
		calls++
		got = res
	})
	require.Equal(t, 1, calls, "extractor must report exactly once")
	return got
}

func TestBody(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	tests := map[string]struct {
		body     string
		want     relay.Result[payload]
		wantCode int
	}{
		"valid":    {body: `{"name":"ada"}`, want: relay.Of(payload{Name: "ada"})},
		"invalid":  {body: `{"name":`, wantCode: http.StatusBadRequest},
		"empty":    {body: "", wantCode: http.StatusBadRequest},
		"trailing": {body: `{"name":"ada"} {}`, wantCode: http.StatusBadRequest},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			got := extract(t, relay.Body[payload](http.StatusBadRequest), r)

			if tc.wantCode != 0 {
				assert.True(t, got.IsEmpty())
				assert.Equal(t, tc.wantCode, got.StatusCode())
				return
			}
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

func TestBody_tooLarge(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`"0123456789"`))
	r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, 4)

	got := extract(t, relay.Body[string](http.StatusBadRequest), r)
	assert.Equal(t, http.StatusRequestEntityTooLarge, got.StatusCode())
}

func TestBodyCodec_yaml(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name: ada\n"))
	got := extract(t, relay.BodyCodec[map[string]string](relay.YAMLCodec(), http.StatusBadRequest), r)

	require.True(t, got.IsPresent())
	assert.Equal(t, "ada", got.Get()["name"])
}

func TestQueryParam(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		target   string
		want     string
		wantCode int
	}{
		"present":  {target: "/?page=2", want: "2"},
		"blank":    {target: "/?page=", want: ""},
		"missing":  {target: "/", wantCode: http.StatusBadRequest},
		"repeated": {target: "/?page=1&page=2", wantCode: http.StatusBadRequest},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := extract(t, relay.QueryParam("page"), httptest.NewRequest(http.MethodGet, tc.target, nil))
			if tc.wantCode != 0 {
				assert.Equal(t, tc.wantCode, got.StatusCode())
				return
			}
			assert.Equal(t, tc.want, got.Get())
		})
	}
}

func TestQueryParamJSON(t *testing.T) {
	t.Parallel()

	t.Run("number", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[int]("n", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/?n=42", nil))
		assert.Equal(t, 42, got.Get())
	})

	t.Run("bare word as string", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[string]("s", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/?s=hello", nil))
		assert.Equal(t, "hello", got.Get())
	})

	t.Run("quoted string", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[string]("s", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, `/?s=%22hi%22`, nil))
		assert.Equal(t, `"hi"`, got.Get())
	})

	t.Run("null is text", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[string]("s", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/?s=null", nil))
		require.True(t, got.IsPresent())
		assert.Equal(t, "null", got.Get())
	})

	t.Run("boolean", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[bool]("b", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/?b=true", nil))
		assert.True(t, got.Get())
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[int]("n", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/?n=abc", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, got.StatusCode())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		got := extract(t, relay.QueryParamJSON[int]("n", http.StatusUnprocessableEntity),
			httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusBadRequest, got.StatusCode())
	})
}

func TestHeader(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Tenant", "acme")
	assert.Equal(t, "acme", extract(t, relay.Header("X-Tenant"), r).Get())

	r.Header.Add("X-Tenant", "other")
	assert.Equal(t, http.StatusBadRequest, extract(t, relay.Header("X-Tenant"), r).StatusCode())

	assert.Equal(t, http.StatusBadRequest,
		extract(t, relay.Header("X-Missing"), httptest.NewRequest(http.MethodGet, "/", nil)).StatusCode())
}

func TestCookie(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	assert.Equal(t, "abc", extract(t, relay.Cookie("session"), r).Get())

	assert.Equal(t, http.StatusBadRequest,
		extract(t, relay.Cookie("session"), httptest.NewRequest(http.MethodGet, "/", nil)).StatusCode())
}

func TestRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/raw", nil)
	assert.Same(t, r, extract(t, relay.Request(), r).Get())
}

func TestParamNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		slot relay.Slot
		want string
	}{
		"body":    {slot: relay.Body[string](http.StatusBadRequest), want: "body"},
		"query":   {slot: relay.QueryParam("page"), want: "query:page"},
		"header":  {slot: relay.Header("X-Tenant"), want: "header:X-Tenant"},
		"cookie":  {slot: relay.Cookie("sid"), want: "cookie:sid"},
		"request": {slot: relay.Request(), want: "request"},
		"validated": {
			slot: relay.Validated(relay.QueryParam("q"), func(string) error { return nil }),
			want: "query:q",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.slot.Name())
		})
	}
}

func TestValidated(t *testing.T) {
	t.Parallel()

	nonEmpty := func(s string) error {
		if s == "" {
			return errors.New("empty")
		}
		return nil
	}
	notTeapot := func(s string) error {
		if s == "tea" {
			return relay.Error(http.StatusTeapot, "no tea")
		}
		return nil
	}

	tests := map[string]struct {
		target   string
		check    func(string) error
		want     string
		wantCode int
	}{
		"passes":             {target: "/?q=x", check: nonEmpty, want: "x"},
		"plain error":        {target: "/?q=", check: nonEmpty, wantCode: http.StatusUnprocessableEntity},
		"status coder error": {target: "/?q=tea", check: notTeapot, wantCode: http.StatusTeapot},
		"inner failure":      {target: "/", check: nonEmpty, wantCode: http.StatusBadRequest},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := extract(t, relay.Validated(relay.QueryParam("q"), tc.check),
				httptest.NewRequest(http.MethodGet, tc.target, nil))
			if tc.wantCode != 0 {
				assert.Equal(t, tc.wantCode, got.StatusCode())
				return
			}
			assert.Equal(t, tc.want, got.Get())
		})
	}
}

func TestAsync(t *testing.T) {
	t.Parallel()

	e := relay.ExtractorFunc[int](func(*http.Request) relay.Result[int] { return relay.Of(7) })
	var got relay.Result[int]
	relay.Async[int](e).TryExtractAsync(httptest.NewRequest(http.MethodGet, "/", nil), func(r relay.Result[int]) {
		got = r
	})
	assert.Equal(t, 7, got.Get())
}
