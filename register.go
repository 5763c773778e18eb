package relay

import "fmt"

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	Register(ps ...*Pipeline) error
}

// Handle builds e and registers it on reg. It panics if the endpoint is
// invalid or its route is already taken, like http.ServeMux.
func Handle[S Sender](reg Registrar, e Endpoint[S]) *Pipeline {
	p, err := e.Build()
	if err != nil {
		panic(err)
	}
	if err := reg.Register(p); err != nil {
		panic(fmt.Errorf("relay: register %s: %w", p.route, err))
	}
	return p
}

func register[S Sender](reg Registrar, method Method, path string, response Responder[S], h Handler[S], args []Slot) *Pipeline {
	return Handle(reg, Endpoint[S]{
		Method:   method,
		Path:     path,
		Response: response,
		Args:     args,
		Handler:  h,
	})
}

// Get registers a GET pipeline.
func Get[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, GET, path, response, h, args)
}

// Put registers a PUT pipeline.
func Put[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, PUT, path, response, h, args)
}

// Post registers a POST pipeline.
func Post[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, POST, path, response, h, args)
}

// Delete registers a DELETE pipeline.
func Delete[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, DELETE, path, response, h, args)
}

// Patch registers a PATCH pipeline.
func Patch[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, PATCH, path, response, h, args)
}

// Head registers a HEAD pipeline.
func Head[S Sender](reg Registrar, path string, response Responder[S], h Handler[S], args ...Slot) *Pipeline {
	return register(reg, HEAD, path, response, h, args)
}
