package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Extractor pulls one typed argument out of a request synchronously.
type Extractor[A any] interface {
	TryExtract(r *http.Request) Result[A]
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc[A any] func(r *http.Request) Result[A]

// TryExtract implements Extractor.
func (f ExtractorFunc[A]) TryExtract(r *http.Request) Result[A] { return f(r) }

// AsyncExtractor pulls one typed argument out of a request and reports it to
// onExtracted, inline or later, at most once.
type AsyncExtractor[A any] interface {
	TryExtractAsync(r *http.Request, onExtracted func(Result[A]))
}

// AsyncExtractorFunc adapts a function to AsyncExtractor.
type AsyncExtractorFunc[A any] func(r *http.Request, onExtracted func(Result[A]))

// TryExtractAsync implements AsyncExtractor.
func (f AsyncExtractorFunc[A]) TryExtractAsync(r *http.Request, onExtracted func(Result[A])) {
	f(r, onExtracted)
}

// Async adapts a synchronous extractor by invoking the callback inline.
func Async[A any](e Extractor[A]) AsyncExtractor[A] {
	return AsyncExtractorFunc[A](func(r *http.Request, onExtracted func(Result[A])) {
		onExtracted(e.TryExtract(r))
	})
}

// Param is a typed argument declared on an endpoint. It is both an
// AsyncExtractor and a type-erased pipeline slot.
type Param[A any] struct {
	name  string
	async AsyncExtractor[A]
}

// TryExtractAsync implements AsyncExtractor.
func (p Param[A]) TryExtractAsync(r *http.Request, onExtracted func(Result[A])) {
	p.async.TryExtractAsync(r, onExtracted)
}

// Name describes the argument source, e.g. "query:page".
func (p Param[A]) Name() string { return p.name }

func (p Param[A]) extract(r *http.Request, next func(v any, code int, ok bool)) {
	p.async.TryExtractAsync(r, func(res Result[A]) {
		v, ok := res.Value()
		next(v, res.StatusCode(), ok)
	})
}

// Sync declares an argument backed by a synchronous extractor.
func Sync[A any](name string, e Extractor[A]) Param[A] {
	return Param[A]{name: name, async: Async(e)}
}

// Deferred declares an argument backed by an asynchronous extractor.
func Deferred[A any](name string, e AsyncExtractor[A]) Param[A] {
	return Param[A]{name: name, async: e}
}

// Extract declares an argument backed by a function.
func Extract[A any](name string, f func(r *http.Request) Result[A]) Param[A] {
	return Sync[A](name, ExtractorFunc[A](f))
}

// Body reads the request body and decodes it as JSON, failing with code.
// A body cut short by a BodyLimit fails with 413 instead.
func Body[A any](code int) Param[A] {
	return BodyCodec[A](JSONCodec(), code)
}

// BodyCodec reads the request body and decodes it with c.
func BodyCodec[A any](c Codec, code int) Param[A] {
	return Extract("body", func(r *http.Request) Result[A] {
		data, err := readBody(r)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return Empty[A](http.StatusRequestEntityTooLarge)
			}
			return Empty[A](code)
		}
		return TryDecode[A](c, data, code)
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}

// QueryParam extracts a query parameter that must appear exactly once.
func QueryParam(name string) Param[string] {
	return Extract("query:"+name, func(r *http.Request) Result[string] {
		return exactlyOne(r.URL.Query()[name])
	})
}

// QueryParamJSON extracts a query parameter that must appear exactly once
// and decodes its text as a JSON string. Types that cannot hold a string,
// such as numbers and booleans, decode the raw text instead.
func QueryParamJSON[A any](name string, code int) Param[A] {
	return Extract("query:"+name, func(r *http.Request) Result[A] {
		text := exactlyOne(r.URL.Query()[name])
		if text.IsEmpty() {
			return ConvertEmpty[A](text)
		}
		codec := JSONCodec()
		quoted, err := json.Marshal(text.Get())
		if err != nil {
			return Empty[A](code)
		}
		if v, err := Decode[A](codec, quoted); err == nil {
			return Of(v)
		}
		return TryDecode[A](codec, []byte(text.Get()), code)
	})
}

// Header extracts a request header that must appear exactly once.
func Header(name string) Param[string] {
	return Extract("header:"+name, func(r *http.Request) Result[string] {
		return exactlyOne(r.Header.Values(name))
	})
}

// Cookie extracts the value of a request cookie.
func Cookie(name string) Param[string] {
	return Extract("cookie:"+name, func(r *http.Request) Result[string] {
		c, err := r.Cookie(name)
		if err != nil {
			return Empty[string](http.StatusBadRequest)
		}
		return Of(c.Value)
	})
}

// Request passes the raw *http.Request through as an argument.
func Request() Param[*http.Request] {
	return Extract("request", func(r *http.Request) Result[*http.Request] {
		return Of(r)
	})
}

// Validated runs check on the value extracted by p. A failing check yields
// the status of its error if it implements StatusCoder, otherwise 422.
func Validated[A any](p Param[A], check func(A) error) Param[A] {
	return Deferred(p.name, AsyncExtractorFunc[A](func(r *http.Request, onExtracted func(Result[A])) {
		p.TryExtractAsync(r, func(res Result[A]) {
			v, ok := res.Value()
			if !ok {
				onExtracted(res)
				return
			}
			if err := check(v); err != nil {
				onExtracted(Empty[A](validationStatus(err)))
				return
			}
			onExtracted(res)
		})
	}))
}

func validationStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusUnprocessableEntity
}

func exactlyOne(values []string) Result[string] {
	if len(values) != 1 {
		return Empty[string](http.StatusBadRequest)
	}
	return Of(values[0])
}
