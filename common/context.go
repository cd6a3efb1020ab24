package common

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/opendogma/dogma/common/mlog"
)

type dogmaContextKey string

// ContextKey is the key under which a *ContextValues is stored in a context.Context.
var ContextKey = dogmaContextKey("dogma_context")

// ContextValues bundles the per-request/per-command logger and tracer so every
// layer of the command pipeline (C1-C8) can pull them out of ctx instead of
// threading them through every function signature.
type ContextValues struct {
	Tracer trace.Tracer
	Logger mlog.Logger
}

// NewLoggerFromContext extracts the Logger stored in ctx, or a no-op Logger if none was set.
//
//nolint:ireturn
func NewLoggerFromContext(ctx context.Context) mlog.Logger {
	if v, ok := ctx.Value(ContextKey).(*ContextValues); ok && v.Logger != nil {
		return v.Logger
	}

	return &mlog.NoneLogger{}
}

// ContextWithLogger returns a context carrying logger.
func ContextWithLogger(ctx context.Context, logger mlog.Logger) context.Context {
	v, _ := ctx.Value(ContextKey).(*ContextValues)
	if v == nil {
		v = &ContextValues{}
	}

	v.Logger = logger

	return context.WithValue(ctx, ContextKey, v)
}

// NewTracerFromContext extracts the Tracer stored in ctx, or the global default tracer.
//
//nolint:ireturn
func NewTracerFromContext(ctx context.Context) trace.Tracer {
	if v, ok := ctx.Value(ContextKey).(*ContextValues); ok && v.Tracer != nil {
		return v.Tracer
	}

	return otel.Tracer("dogma")
}

// ContextWithTracer returns a context carrying tracer.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	v, _ := ctx.Value(ContextKey).(*ContextValues)
	if v == nil {
		v = &ContextValues{}
	}

	v.Tracer = tracer

	return context.WithValue(ctx, ContextKey, v)
}
