// Package observe wires structured logging and tracing.
package observe

import (
	"context"
	"io"
	"strings"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("marketing")

// Observer handles logging and tracing.
type Observer struct {
	log *bolt.Logger
}

// New creates an Observer with console output at the given level.
func New(out io.Writer, level string) *Observer {
	l := bolt.New(bolt.NewConsoleHandler(out))
	setLevel(l, level)
	return &Observer{log: l}
}

// NewJSON creates an Observer with JSON output at the given level.
func NewJSON(out io.Writer, level string) *Observer {
	l := bolt.New(bolt.NewJSONHandler(out))
	setLevel(l, level)
	return &Observer{log: l}
}

// Discard returns an Observer that only reports errors to io.Discard.
func Discard() *Observer {
	return NewJSON(io.Discard, "error")
}

func setLevel(l *bolt.Logger, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l.SetLevel(bolt.DEBUG)
	case "warn", "warning":
		l.SetLevel(bolt.WARN)
	case "error":
		l.SetLevel(bolt.ERROR)
	default:
		l.SetLevel(bolt.INFO)
	}
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Close flushes buffered output. Bolt writes synchronously, so there is nothing to do yet.
func (o *Observer) Close() error {
	return nil
}
