package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
)

// Sender is the capability to send the single response of a request.
// Every Sender panics with ErrAlreadySent on a second send.
type Sender interface {
	SendErrorCode(code int)
}

// StatusSender sends a response that consists of a status code only.
type StatusSender interface {
	Sender
	Send(code int)
	SendOK()
}

// ValueSender sends an encoded value on success or a bare status code on failure.
type ValueSender[V any] interface {
	Sender
	Send(r Result[V])
	SendValue(v V)
}

// SendEmpty forwards the code of an empty result to any Sender. It panics
// with ErrResultPresent if r holds a value.
func SendEmpty[V any](s Sender, r Result[V]) {
	if r.IsPresent() {
		panic(ErrResultPresent)
	}
	s.SendErrorCode(r.StatusCode())
}

// response is the write side of one exchange. The sent flag is claimed with
// a compare-and-swap because a send may come from the I/O loop or a worker.
// Writes are serialized with seal so nothing touches the ResponseWriter once
// the exchange has returned from ServeHTTP.
type response struct {
	w      http.ResponseWriter
	sent   atomic.Bool
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	sealed bool
}

func newResponse(w http.ResponseWriter, logger *slog.Logger) *response {
	return &response{w: w, done: make(chan struct{}), logger: logger}
}

func (res *response) claim() {
	if !res.sent.CompareAndSwap(false, true) {
		panic(ErrAlreadySent)
	}
}

// tryClaim is used by the server to answer a request whose handler faulted
// or never responded.
func (res *response) tryClaim() bool {
	return res.sent.CompareAndSwap(false, true)
}

func (res *response) writeStatus(code int) {
	res.write(code, "", nil)
}

func (res *response) writeBody(code int, contentType string, body []byte) {
	res.write(code, contentType, body)
}

func (res *response) write(code int, contentType string, body []byte) {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.sealed {
		res.logger.Debug("response dropped, exchange already ended", "status", code)
		return
	}
	if contentType != "" {
		res.w.Header().Set("Content-Type", contentType)
	}
	res.w.WriteHeader(code)
	if len(body) > 0 {
		//nolint:errcheck,gosec // best-effort after WriteHeader
		res.w.Write(body)
	}
	close(res.done)
}

// seal stops all further writes.
func (res *response) seal() {
	res.mu.Lock()
	res.sealed = true
	res.mu.Unlock()
}

// statusSender implements StatusSender.
type statusSender struct {
	res *response
}

func (s *statusSender) Send(code int) {
	s.res.claim()
	s.res.writeStatus(code)
}

func (s *statusSender) SendOK() { s.Send(http.StatusOK) }

func (s *statusSender) SendErrorCode(code int) { s.Send(code) }

// valueSender implements ValueSender by encoding values with a Codec.
type valueSender[V any] struct {
	res   *response
	codec Codec
}

func (s *valueSender[V]) Send(r Result[V]) {
	s.res.claim()
	v, ok := r.Value()
	if !ok {
		s.res.writeStatus(r.StatusCode())
		return
	}
	body, err := s.codec.Marshal(v)
	if err != nil {
		s.res.logger.Error("response value could not be encoded", "err", err)
		s.res.writeStatus(http.StatusInternalServerError)
		return
	}
	s.res.writeBody(http.StatusOK, s.codec.ContentType(), body)
}

func (s *valueSender[V]) SendValue(v V) { s.Send(Of(v)) }

func (s *valueSender[V]) SendErrorCode(code int) { s.Send(Empty[V](code)) }

// Responder selects the kind of Sender a pipeline hands to its handler.
type Responder[S Sender] interface {
	newSender(res *response, codec Codec) S
	kind() string
}

type statusResponder struct{}

func (statusResponder) newSender(res *response, _ Codec) StatusSender {
	return &statusSender{res: res}
}

func (statusResponder) kind() string { return "status" }

type valueResponder[V any] struct {
	codec Codec
}

func (vr valueResponder[V]) newSender(res *response, codec Codec) ValueSender[V] {
	if vr.codec != nil {
		codec = vr.codec
	}
	return &valueSender[V]{res: res, codec: codec}
}

func (valueResponder[V]) kind() string { return "value" }

// StatusCode declares a status-code-only response.
func StatusCode() Responder[StatusSender] { return statusResponder{} }

// JSON declares a value response encoded with the router's codec, which is
// JSONCodec unless WithCodec replaced it.
func JSON[V any]() Responder[ValueSender[V]] { return valueResponder[V]{} }

// Encoded declares a value response encoded with c instead of the router's
// codec.
func Encoded[V any](c Codec) Responder[ValueSender[V]] { return valueResponder[V]{codec: c} }

// NewStatusSender returns a StatusSender writing to w, for servers that run
// pipelines outside a Router.
func NewStatusSender(w http.ResponseWriter) StatusSender {
	return &statusSender{res: newResponse(w, slog.Default())}
}

// NewValueSender returns a ValueSender writing to w with the given codec.
func NewValueSender[V any](w http.ResponseWriter, codec Codec) ValueSender[V] {
	return &valueSender[V]{res: newResponse(w, slog.Default()), codec: codec}
}
