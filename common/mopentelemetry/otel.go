// Package mopentelemetry provides the tracing helpers shared by every
// component of the command pipeline (C1-C8): a tracer accessor and the span
// bookkeeping used around every execute/append/apply call. It deliberately
// does not wire an OTLP exporter pipeline (see DESIGN.md) — callers that
// want traces exported register their own TracerProvider with
// go.opentelemetry.io/otel/sdk/trace and otel.SetTracerProvider before
// calling NewTracer; without one, spans are cheap no-ops.
package mopentelemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opendogma/dogma/common"
)

// NewTracer returns the named tracer registered with the global TracerProvider.
//
//nolint:ireturn
func NewTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SetSpanAttributesFromStruct marshals valueStruct to JSON and attaches it to span under key.
func SetSpanAttributesFromStruct(span *trace.Span, key string, valueStruct any) error {
	str, err := common.StructToJSONString(valueStruct)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.String(key, str))

	return nil
}

// HandleSpanError records err on span and marks the span as failed, without
// altering the error returned to the caller.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}
