package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"reflect"
)

// Codec is the serialization boundary. Marshal fails with a *SerializationError and
// Unmarshal with a *DeserializationError.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// SerializationError reports a value that could not be encoded.
type SerializationError struct {
	Type reflect.Type
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failed: %s could not be serialized: %v", e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError reports bytes that could not be decoded into Type.
type DeserializationError struct {
	Type reflect.Type
	Data []byte
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialization failed: data could not be deserialized as %s: %v", e.Type, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// ContentTypeError reports a response whose Content-Type is missing or is
// not the codec's media type.
type ContentTypeError struct {
	Got  string
	Want string
}

func (e *ContentTypeError) Error() string {
	if e.Got == "" {
		return "deserialization failed: Content-Type is missing"
	}
	return fmt.Sprintf("deserialization failed: Content-Type %q is not %s", e.Got, e.Want)
}

var errTrailingData = errors.New("unexpected data after JSON value")

// jsonCodec implements Codec with encoding/json. Anything but whitespace
// after the first JSON value is rejected.
type jsonCodec struct{}

// JSONCodec returns the default codec.
func JSONCodec() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Type: reflect.TypeOf(v), Err: err}
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	err := dec.Decode(v)
	if err == nil {
		if _, tokErr := dec.Token(); tokErr != io.EOF {
			err = errTrailingData
		}
	}
	if err != nil {
		return &DeserializationError{Type: reflect.TypeOf(v).Elem(), Data: data, Err: err}
	}
	return nil
}

// Decode unmarshals data into a new V.
func Decode[V any](c Codec, data []byte) (V, error) {
	var v V
	if err := c.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// TryDecode unmarshals data into a new V, reporting failure as an empty
// Result with the given code.
func TryDecode[V any](c Codec, data []byte, code int) Result[V] {
	v, err := Decode[V](c, data)
	if err != nil {
		return Empty[V](code)
	}
	return Of(v)
}

// checkContentType verifies that contentType names the codec's media type.
func checkContentType(c Codec, contentType string) error {
	if contentType == "" {
		return &ContentTypeError{Want: c.ContentType()}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != c.ContentType() {
		return &ContentTypeError{Got: contentType, Want: c.ContentType()}
	}
	return nil
}

// Bytes is a byte slice that encodes as URL-safe base64 in JSON.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	return json.Marshal(base64.URLEncoding.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}
