// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Callers depend on Tracer and Span only, so tests run with NoopTracer and
// production wires OTelTracer against the global provider.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanBackendCall,
//	    tracer.String(tracer.AttrHTTPMethod, "GET"),
//	)
//	defer span.End(err)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanBackendCall   = "backend.call"
	SpanTokenRefresh  = "session.refresh"
	SpanViewFetch     = "view.fetch"
	SpanOverviewFetch = "console.overview"
)

// Attribute keys.
const (
	AttrHTTPMethod   = "http.method"
	AttrHTTPPath     = "http.path"
	AttrHTTPStatus   = "http.status_code"
	AttrErrorKind    = "error.kind"
	AttrEntity       = "entity"
	AttrPageIndex    = "page.index"
	AttrPageSize     = "page.size"
	AttrGeneration   = "view.generation"
	AttrCircuitState = "circuit.open"
)

// Event names.
const (
	EventStaleDiscarded = "view.stale_discarded"
	EventRefreshShared  = "session.refresh_shared"
)
