package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/zoobzio/capitan"
)

var (
	MetricRelayRequestCount          = []string{"relay", "request", "count"}
	MetricRelayRouteErrorCount       = []string{"relay", "route", "error", "count"}
	MetricRelayArgumentRejectedCount = []string{"relay", "argument", "rejected", "count"}
	MetricRelayDispatchCount         = []string{"relay", "dispatch", "count"}
	MetricRelayUnansweredCount       = []string{"relay", "response", "unanswered", "count"}
	MetricRelayResponseTimeoutCount  = []string{"relay", "response", "timeout", "count"}
	MetricRelayFaultCount            = []string{"relay", "fault", "count"}
	MetricRelayRateLimitedCount      = []string{"relay", "ratelimit", "rejected", "count"}
	MetricRelayUpstreamCount         = []string{"relay", "upstream", "count"}
	MetricRelayUpstreamErrorCount    = []string{"relay", "upstream", "error", "count"}
	MetricRelayUpstreamLatencyMillis = []string{"relay", "upstream", "latency", "ms"}
)

type TelemetryLabel string

var (
	LabelMethod   TelemetryLabel = "method"
	LabelRoute    TelemetryLabel = "route"
	LabelStatus   TelemetryLabel = "status"
	LabelError    TelemetryLabel = "error"
	LabelArgument TelemetryLabel = "argument"
	LabelMode     TelemetryLabel = "mode"
	LabelUpstream TelemetryLabel = "upstream"
	LabelKey      TelemetryLabel = "key"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}

// telemetry emits counters to a metrics sink and lifecycle events through
// capitan. It is shared by a router and every pipeline registered on it.
type telemetry struct {
	sink   metrics.MetricSink
	labels []metrics.Label
	events bool
}

var noTelemetry = &telemetry{sink: &metrics.BlackholeSink{}}

func newTelemetry(sink metrics.MetricSink, labels []metrics.Label, events bool) *telemetry {
	if sink == nil {
		sink = metrics.Default()
	}
	return &telemetry{sink: sink, labels: labels, events: events}
}

func (t *telemetry) incr(key []string, labels ...metrics.Label) {
	all := make([]metrics.Label, 0, len(t.labels)+len(labels))
	all = append(all, t.labels...)
	all = append(all, labels...)
	t.sink.IncrCounterWithLabels(key, 1, all)
}

func (t *telemetry) routeRegistered(rt Route) {
	if !t.events {
		return
	}
	capitan.Emit(context.Background(), RouteRegistered,
		KeyMethod.Field(string(rt.Method())),
		KeyRoute.Field(rt.Path()),
	)
}

func (t *telemetry) routed(rt Route) {
	t.incr(MetricRelayRequestCount, LabelMethod.M(string(rt.Method())), LabelRoute.M(rt.Path()))
}

func (t *telemetry) routeFailed(reason string) {
	t.incr(MetricRelayRouteErrorCount, LabelError.M(reason))
}

func (t *telemetry) argumentRejected(ctx context.Context, rt Route, arg string, code int) {
	t.incr(MetricRelayArgumentRejectedCount,
		LabelRoute.M(rt.Path()),
		LabelArgument.M(arg),
		LabelStatus.M(statusLabel(code)),
	)
	if !t.events {
		return
	}
	capitan.Emit(ctx, ArgumentRejected,
		KeyRoute.Field(rt.Path()),
		KeyArgument.Field(arg),
		KeyStatus.Field(code),
	)
}

func (t *telemetry) dispatched(mode string) {
	t.incr(MetricRelayDispatchCount, LabelMode.M(mode))
}

func (t *telemetry) unanswered(rt Route) {
	t.incr(MetricRelayUnansweredCount, LabelRoute.M(rt.Path()))
}

func (t *telemetry) timedOut(rt Route) {
	t.incr(MetricRelayResponseTimeoutCount, LabelRoute.M(rt.Path()))
}

func (t *telemetry) faultRecovered(ctx context.Context, rt Route, mode string, fault any) {
	t.incr(MetricRelayFaultCount, LabelRoute.M(rt.Path()), LabelMode.M(mode))
	if !t.events {
		return
	}
	capitan.Emit(ctx, FaultRecovered,
		KeyRoute.Field(rt.Path()),
		KeyMode.Field(mode),
		KeyError.Field(faultString(fault)),
	)
}

func (t *telemetry) rateLimited(key string) {
	t.incr(MetricRelayRateLimitedCount, LabelKey.M(key))
}

func (t *telemetry) upstreamCalled(upstream string, status int, took time.Duration) {
	t.incr(MetricRelayUpstreamCount, LabelUpstream.M(upstream), LabelStatus.M(statusLabel(status)))
	t.sink.AddSampleWithLabels(MetricRelayUpstreamLatencyMillis,
		float32(took.Seconds()*1000),
		append(append([]metrics.Label(nil), t.labels...), LabelUpstream.M(upstream)),
	)
}

func (t *telemetry) upstreamFailed(ctx context.Context, upstream, reason string, err error) {
	t.incr(MetricRelayUpstreamErrorCount, LabelUpstream.M(upstream), LabelError.M(reason))
	if !t.events {
		return
	}
	capitan.Emit(ctx, UpstreamFailed,
		KeyUpstream.Field(upstream),
		KeyReason.Field(reason),
		KeyError.Field(err.Error()),
	)
}

func statusLabel(code int) string { return strconv.Itoa(code) }

func faultString(fault any) string {
	if err, ok := fault.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(fault)
}
