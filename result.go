package relay

import (
	"fmt"
	"net/http"
	"reflect"
)

// Result holds either a value with an implicit 200 status code, or no value
// and an error status code. Extractors and response adapters return it
// instead of an error so that request-data failures never cross the
// pipeline boundary as errors.
type Result[V any] struct {
	value   V
	code    int
	present bool
}

// Of returns a present Result with status code 200.
func Of[V any](value V) Result[V] {
	return Result[V]{value: value, code: http.StatusOK, present: true}
}

// Empty returns an absent Result carrying the given error code.
func Empty[V any](code int) Result[V] {
	return Result[V]{code: code}
}

// OfNullable returns a present Result for a non-nil pointer and an absent
// Result with the given code for nil.
func OfNullable[V any](value *V, code int) Result[V] {
	if value == nil {
		return Empty[V](code)
	}
	return Of(*value)
}

// ConvertEmpty re-types an absent Result, keeping its code.
// It panics if r holds a value.
func ConvertEmpty[U, V any](r Result[V]) Result[U] {
	if r.present {
		panic(fmt.Errorf("%w: cannot convert a present result", ErrResultPresent))
	}
	return Empty[U](r.code)
}

// IsPresent reports whether r holds a value.
func (r Result[V]) IsPresent() bool { return r.present }

// IsEmpty reports whether r holds no value.
func (r Result[V]) IsEmpty() bool { return !r.present }

// StatusCode returns 200 for a present Result, otherwise the error code.
func (r Result[V]) StatusCode() int { return r.code }

// Get returns the value. It panics if r is empty.
func (r Result[V]) Get() V {
	if !r.present {
		panic(fmt.Errorf("%w: status %d", ErrResultEmpty, r.code))
	}
	return r.value
}

// Value returns the value and whether it is present.
func (r Result[V]) Value() (V, bool) {
	return r.value, r.present
}

// Equal reports whether both results hold equal values and codes.
func (r Result[V]) Equal(other Result[V]) bool {
	if r.present != other.present || r.code != other.code {
		return false
	}
	return !r.present || reflect.DeepEqual(r.value, other.value)
}

func (r Result[V]) String() string {
	if r.present {
		return fmt.Sprintf("Result[%v]", r.value)
	}
	return fmt.Sprintf("Result.empty[%d]", r.code)
}
