package relay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/relay"
)

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string
		want []string
	}{
		"root":           {path: "/", want: []string{""}},
		"single":         {path: "/a", want: []string{"a"}},
		"nested":         {path: "/a/b", want: []string{"a", "b"}},
		"trailing slash": {path: "/a/b/", want: []string{"a", "b", ""}},
		"no leading":     {path: "a/b", want: []string{"a", "b"}},
		"double slash":   {path: "/a//b", want: []string{"a", "", "b"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, relay.SplitPath(tc.path))
		})
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"GET", "PUT", "POST", "DELETE", "PATCH", "HEAD"} {
		got, ok := relay.ParseMethod(m)
		assert.True(t, ok, m)
		assert.Equal(t, relay.Method(m), got)
	}
	for _, m := range []string{"TRACE", "OPTIONS", "CONNECT", "get", ""} {
		_, ok := relay.ParseMethod(m)
		assert.False(t, ok, m)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	rt := relay.NewRoute(relay.GET, "/users/list")
	assert.Equal(t, relay.GET, rt.Method())
	assert.Equal(t, []string{"users", "list"}, rt.Segments())
	assert.Equal(t, "/users/list", rt.Path())
	assert.Equal(t, "GET /users/list", rt.String())

	assert.True(t, rt.Equal(relay.NewRoute(relay.GET, "users/list")))
	assert.False(t, rt.Equal(relay.NewRoute(relay.POST, "/users/list")))
	assert.False(t, rt.Equal(relay.NewRoute(relay.GET, "/users/list/")))

	segs := rt.Segments()
	segs[0] = "changed"
	assert.Equal(t, "/users/list", rt.Path(), "Segments returns a copy")
}
