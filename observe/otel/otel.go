// Package otel bridges observe.Sink to OpenTelemetry tracing.
//
// It converts observe.Event objects into OTel spans so that checkpoint
// writes, history appends, graph steps, and model calls are visible in any
// OpenTelemetry-compatible backend (Jaeger, Zipkin, Grafana, etc.).
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kubewise-ai/kubewise/observe"
)

const instrumentationName = "github.com/kubewise-ai/kubewise"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink using the given TracerProvider.
// If tp is nil, it uses a noop tracer provider.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit converts an observe.Event into an OTel span.
func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	spanName := spanNameFor(event)
	ctx := context.Background()
	startTime := event.Timestamp

	_, span := s.tracer.Start(ctx, spanName, trace.WithTimestamp(startTime))

	attrs := []attribute.KeyValue{
		attribute.String("companion.event.kind", string(event.Kind)),
	}
	if event.ThreadID != "" {
		attrs = append(attrs, attribute.String("companion.thread.id", event.ThreadID))
	}
	if event.ConversationID != "" {
		attrs = append(attrs, attribute.String("companion.conversation.id", event.ConversationID))
	}
	if event.Provider != "" {
		attrs = append(attrs, attribute.String("companion.provider", event.Provider))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("companion.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("companion.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("companion.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("companion.duration_ms", event.DurationMs))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("companion.attr."+k, fmt.Sprintf("%v", v)))
	}

	span.SetAttributes(attrs...)

	if event.Status == observe.StatusFailed {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	endTime := startTime
	if event.DurationMs > 0 {
		endTime = startTime.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(endTime))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindCheckpoint:
		if event.Name != "" {
			return "companion." + event.Name
		}
		return "companion.checkpoint"
	case observe.KindHistory:
		if event.Name != "" {
			return "companion." + event.Name
		}
		return "companion.history"
	case observe.KindGraph:
		if event.Name != "" {
			return "companion.graph." + event.Name
		}
		return "companion.graph.step"
	case observe.KindProvider:
		if event.Provider != "" {
			return "companion.llm." + event.Provider
		}
		return "companion.llm.generate"
	default:
		if event.Name != "" {
			return "companion." + event.Name
		}
		return "companion.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
