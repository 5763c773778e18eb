package relay

import "strings"

// Group is a collection of routes under a shared prefix with shared middleware and tags.
type Group struct {
	router     *Router
	prefix     string
	middleware []Middleware
	tags       []string
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags adds default tags to all routes registered on the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(g *Group) {
		g.tags = append(g.tags, tags...)
	}
}

// WithGroupMiddleware adds middleware that wraps only the group's routes.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group creates a new route group with the given prefix and options.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{router: r}
	if trimmed := strings.Trim(prefix, "/"); trimmed != "" {
		g.prefix = "/" + trimmed
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register implements Registrar. Each pipeline is registered as a copy whose
// route is prefixed with the group path.
func (g *Group) Register(ps ...*Pipeline) error {
	scoped := make([]*Pipeline, 0, len(ps))
	for _, p := range ps {
		if p == nil {
			scoped = append(scoped, nil)
			continue
		}
		scoped = append(scoped, g.scope(p))
	}
	return g.router.Register(scoped...)
}

func (g *Group) scope(p *Pipeline) *Pipeline {
	cp := *p
	path := g.prefix + p.route.Path()
	if g.prefix != "" && p.route.Path() == "/" {
		path = g.prefix
	}
	cp.route = NewRoute(p.route.method, path)
	cp.info.tags = append(append([]string(nil), g.tags...), p.info.tags...)
	cp.middleware = append(append([]Middleware(nil), g.middleware...), p.middleware...)
	return &cp
}
