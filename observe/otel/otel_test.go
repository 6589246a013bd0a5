package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kubewise-ai/kubewise/observe"
)

func TestSinkEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)

	now := time.Now()
	err := sink.Emit(context.Background(), observe.Event{
		Kind:       observe.KindCheckpoint,
		Name:       "checkpoint.put",
		ThreadID:   "thread-123",
		Status:     observe.StatusCompleted,
		Timestamp:  now,
		DurationMs: 150,
	})
	if err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != "companion.checkpoint.put" {
		t.Errorf("expected span name 'companion.checkpoint.put', got %q", span.Name)
	}

	attrMap := attrToMap(span.Attributes)
	if v, ok := attrMap["companion.thread.id"]; !ok || v != "thread-123" {
		t.Errorf("missing or wrong companion.thread.id: %v", attrMap)
	}
}

func TestSpanNaming(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)
	now := time.Now()

	tests := []struct {
		event    observe.Event
		wantName string
	}{
		{observe.Event{Kind: observe.KindProvider, Provider: "proxy", Timestamp: now}, "companion.llm.proxy"},
		{observe.Event{Kind: observe.KindHistory, Name: "history.append", Timestamp: now}, "companion.history.append"},
		{observe.Event{Kind: observe.KindGraph, Name: "supervisor", Timestamp: now}, "companion.graph.supervisor"},
		{observe.Event{Kind: observe.KindCheckpoint, Timestamp: now}, "companion.checkpoint"},
		{observe.Event{Kind: observe.KindCustom, Name: "custom_event", Timestamp: now}, "companion.custom_event"},
	}

	for _, tt := range tests {
		exporter.Reset()
		_ = sink.Emit(context.Background(), tt.event)
		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Errorf("expected 1 span for %s, got %d", tt.wantName, len(spans))
			continue
		}
		if spans[0].Name != tt.wantName {
			t.Errorf("expected span name %q, got %q", tt.wantName, spans[0].Name)
		}
	}
}

func TestFailedEventMarksSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)
	_ = sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindCheckpoint,
		Status:    observe.StatusFailed,
		Error:     "connection refused",
		Timestamp: time.Now(),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Errorf("expected error status, got %v", spans[0].Status)
	}
}

func TestNilTracerProviderUsesNoop(t *testing.T) {
	sink := NewSink(nil)
	if err := sink.Emit(context.Background(), observe.Event{Kind: observe.KindCheckpoint}); err != nil {
		t.Fatalf("noop sink Emit failed: %v", err)
	}
}

func attrToMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsString()
	}
	return out
}
