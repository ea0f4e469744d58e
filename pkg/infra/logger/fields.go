// Package logger carries structured logging fields through a context so that
// every log line of one request shares its request id, trace id and device.
package logger

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	fieldsKey contextKey = iota
	loggerKey
)

// Field names set by the HTTP middleware.
const (
	FieldRequestID = "request_id"
	FieldDevice    = "device"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
)

// fields is copied on write; a ctx never sees later additions made by children.
type fields []any

func fromContext(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey).(fields)
	return f
}

// WithFields returns a ctx whose logger also carries keysAndValues.
// A trailing key without a value is dropped.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	keysAndValues = keysAndValues[:len(keysAndValues)&^1]

	prev := fromContext(ctx)
	next := make(fields, 0, len(prev)+len(keysAndValues))
	next = append(next, prev...)
	next = append(next, keysAndValues...)
	return context.WithValue(ctx, fieldsKey, next)
}

// WithRequestID adds the request id field.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, FieldRequestID, requestID)
}

// WithTraceContext copies trace_id and span_id of the active OpenTelemetry
// span into the log fields. Without a valid span ctx is returned unchanged.
func WithTraceContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx, FieldTraceID, sc.TraceID().String(), FieldSpanID, sc.SpanID().String())
}

// WithDevice adds a shortened device fingerprint.
func WithDevice(ctx context.Context, device string) context.Context {
	if len(device) > 12 {
		device = device[:12]
	}
	return WithFields(ctx, FieldDevice, device)
}

// GetContextFields returns the fields stored in ctx as key/value pairs.
func GetContextFields(ctx context.Context) []any {
	return fromContext(ctx)
}

// WithLogger pins log to ctx; GetLogger then returns it unchanged.
func WithLogger(ctx context.Context, log core.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// GetLogger returns the pinned logger, or the global logger with the ctx fields.
func GetLogger(ctx context.Context) core.Logger {
	if log, ok := ctx.Value(loggerKey).(core.Logger); ok {
		return log
	}
	base := logger.Global()
	if f := fromContext(ctx); len(f) > 0 {
		return base.With(f...)
	}
	return base
}
