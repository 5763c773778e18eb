package relay

import "github.com/zoobzio/capitan"

// Routing signals.
var (
	// RouteRegistered is emitted when a pipeline is added to a Router.
	RouteRegistered = capitan.NewSignal(
		"relay.route.registered",
		"Pipeline registered on a route",
	)

	// ArgumentRejected is emitted when an extractor yields an empty result
	// and the request is answered with its code.
	ArgumentRejected = capitan.NewSignal(
		"relay.argument.rejected",
		"Argument extraction short-circuited the pipeline",
	)
)

// Execution signals.
var (
	// FaultRecovered is emitted when a panic escapes a handler, extractor, or
	// scheduled task and the request is answered with 500.
	FaultRecovered = capitan.NewSignal(
		"relay.fault.recovered",
		"Uncaught fault converted into a 500",
	)

	// UpstreamFailed is emitted when a backend call fails in transport or its
	// response cannot be adapted.
	UpstreamFailed = capitan.NewSignal(
		"relay.upstream.failed",
		"Backend call failed",
	)
)

// Field keys for relay events.
var (
	// KeyMethod is the HTTP method of the route.
	KeyMethod = capitan.NewStringKey("method")

	// KeyRoute is the route path.
	KeyRoute = capitan.NewStringKey("route")

	// KeyArgument is the name of the extractor that rejected the request.
	KeyArgument = capitan.NewStringKey("argument")

	// KeyStatus is the status code sent.
	KeyStatus = capitan.NewIntKey("status")

	// KeyMode is where the fault happened: "io" or "worker".
	KeyMode = capitan.NewStringKey("mode")

	// KeyUpstream is the backend host.
	KeyUpstream = capitan.NewStringKey("upstream")

	// KeyReason is "transport" or "adapt".
	KeyReason = capitan.NewStringKey("reason")

	// KeyError is the error message.
	KeyError = capitan.NewStringKey("error")
)
