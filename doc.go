// Package relay binds HTTP requests to typed handlers through a chain of
// argument extractors, routes them by exact method and path segments, and
// bridges outbound backend calls back into the original response.
//
// A handler receives a sender, its extracted arguments, and a dispatcher:
//
//	type Handler[S Sender] func(sender S, args Args, d Dispatcher)
//
// Routes are registered with package-level generic functions. Arguments are
// extracted left to right; the first one that fails answers the request with
// its status code and the rest never run:
//
//	r := relay.New(relay.WithWorker(relay.NewWorkerPool(64, logger)))
//	relay.Post(r, "/greeting", relay.JSON[string](),
//	    func(s relay.ValueSender[string], args relay.Args, d relay.Dispatcher) {
//	        s.SendValue("Hello, " + relay.Arg[string](args, 0))
//	    },
//	    relay.Body[string](http.StatusBadRequest),
//	)
//
// Every request is answered exactly once: inline on the I/O loop, from a
// worker after Dispatch, or from a RunManual continuation after Dispatched.
// Senders panic with ErrAlreadySent on a second send.
//
// Backend calls acknowledge a manual dispatch, run on the worker, and resume
// on the I/O loop, answering 502 when the upstream cannot be reached or its
// response cannot be adapted:
//
//	relay.JSONCall[string](backend.Get(url)).Dispatch(s, d,
//	    func(res relay.Result[string], d relay.Dispatcher) { s.Send(res) })
//
// Middleware uses the standard func(http.Handler) http.Handler signature.
package relay
