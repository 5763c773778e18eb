package relay

import (
	"cmp"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"
)

// RouteTable describes every pipeline registered on a Router.
type RouteTable struct {
	Title   string     `json:"title,omitempty" yaml:"title,omitempty"`
	Version string     `json:"version,omitempty" yaml:"version,omitempty"`
	Routes  []RouteDoc `json:"routes" yaml:"routes"`
}

// RouteDoc describes one registered pipeline.
type RouteDoc struct {
	Method      string   `json:"method" yaml:"method"`
	Path        string   `json:"path" yaml:"path"`
	Response    string   `json:"response" yaml:"response"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	Summary     string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Routes returns the route table sorted by path, then method.
func (r *Router) Routes() RouteTable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]RouteDoc, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		doc := RouteDoc{
			Method:      string(p.route.method),
			Path:        p.route.Path(),
			Response:    p.kind,
			Summary:     p.info.summary,
			Description: p.info.desc,
			Tags:        p.info.tags,
			Deprecated:  p.info.deprecated,
		}
		for _, slot := range p.slots {
			doc.Args = append(doc.Args, slot.Name())
		}
		docs = append(docs, doc)
	}
	slices.SortFunc(docs, func(a, b RouteDoc) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Method, b.Method))
	})

	return RouteTable{Title: r.title, Version: r.version, Routes: docs}
}

// ServeRoutes registers a GET pipeline at path that serves the route table
// as JSON.
func (r *Router) ServeRoutes(path string) *Pipeline {
	return Get(r, path, JSON[RouteTable](), func(s ValueSender[RouteTable], _ Args, _ Dispatcher) {
		s.SendValue(r.Routes())
	})
}

// ServeRoutesYAML registers a GET pipeline at path that serves the route
// table as YAML.
func (r *Router) ServeRoutesYAML(path string) *Pipeline {
	return Handle(r, Endpoint[ValueSender[RouteTable]]{
		Method:   GET,
		Path:     path,
		Response: Encoded[RouteTable](YAMLCodec()),
		Handler: func(s ValueSender[RouteTable], _ Args, _ Dispatcher) {
			s.SendValue(r.Routes())
		},
	})
}

// WriteRoutes writes the route table as indented JSON to w.
func (r *Router) WriteRoutes(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Routes())
}

// WriteRoutesYAML writes the route table as YAML to w.
func (r *Router) WriteRoutesYAML(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(r.Routes())
}

// yamlCodec encodes values as YAML.
type yamlCodec struct{}

// YAMLCodec returns a Codec backed by gopkg.in/yaml.v3.
func YAMLCodec() Codec { return yamlCodec{} }

func (yamlCodec) ContentType() string { return "application/yaml" }

func (yamlCodec) Marshal(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(v), Err: err}
	}
	return data, nil
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return &DeserializationError{Type: reflect.TypeOf(v).Elem(), Data: data, Err: err}
	}
	return nil
}

var _ http.Handler = (*Router)(nil)
