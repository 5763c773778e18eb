package relay

import (
	"slices"
	"strings"
)

// Method is an HTTP method that a pipeline can be registered for.
type Method string

// Supported methods.
const (
	GET    Method = "GET"
	PUT    Method = "PUT"
	POST   Method = "POST"
	DELETE Method = "DELETE"
	PATCH  Method = "PATCH"
	HEAD   Method = "HEAD"
)

// ParseMethod parses a raw request method. Methods outside the supported set
// do not parse.
func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case GET, PUT, POST, DELETE, PATCH, HEAD:
		return m, true
	default:
		return "", false
	}
}

// Route is the (method, path segments) key of a pipeline.
type Route struct {
	method   Method
	segments []string
}

// NewRoute builds a Route from a method and a path such as "/users/list".
func NewRoute(method Method, path string) Route {
	return Route{method: method, segments: splitPath(path)}
}

// Method returns the route method.
func (rt Route) Method() Method { return rt.method }

// Segments returns a copy of the path segments.
func (rt Route) Segments() []string { return slices.Clone(rt.segments) }

// Path joins the segments back into a path with a leading slash.
func (rt Route) Path() string { return "/" + strings.Join(rt.segments, "/") }

// Equal reports whether both routes have the same method and segments.
func (rt Route) Equal(other Route) bool {
	return rt.method == other.method && slices.Equal(rt.segments, other.segments)
}

func (rt Route) String() string { return string(rt.method) + " " + rt.Path() }

// splitPath drops one optional leading slash and splits on "/". Segments are
// matched exactly, so "/a/b/" has a trailing empty segment and "/" is a
// single empty segment.
func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// routeInfo holds metadata for a registered route, used for the route
// table export.
type routeInfo struct {
	summary    string
	desc       string
	tags       []string
	deprecated bool
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeInfo)

// WithSummary sets a one-line summary for the route.
func WithSummary(s string) RouteOption {
	return func(ri *routeInfo) {
		ri.summary = s
	}
}

// WithDescription sets a longer description for the route.
func WithDescription(d string) RouteOption {
	return func(ri *routeInfo) {
		ri.desc = d
	}
}

// WithTags adds tags to the route.
func WithTags(tags ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.tags = append(ri.tags, tags...)
	}
}

// WithDeprecated marks the route as deprecated.
func WithDeprecated() RouteOption {
	return func(ri *routeInfo) {
		ri.deprecated = true
	}
}
