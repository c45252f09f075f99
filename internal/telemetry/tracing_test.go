package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestStartSpanTagsSessionAndStep(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), SpanStepExecute, "sess-1", 3, StrategyAttr("selector"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != SpanStepExecute {
		t.Fatalf("expected span name %q, got %q", SpanStepExecute, spans[0].Name())
	}
	found := map[string]bool{}
	for _, kv := range spans[0].Attributes() {
		found[string(kv.Key)] = true
	}
	for _, want := range []string{attrSessionID, attrStepNumber, attrStrategy} {
		if !found[want] {
			t.Fatalf("expected attribute %q on span, got %v", want, spans[0].Attributes())
		}
	}
}

func TestMarkSpanResultSetsErrorStatus(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), SpanResolve, "sess-2", 1)
	MarkSpanResult(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Description != "boom" {
		t.Fatalf("expected error status description boom, got %q", spans[0].Status().Description)
	}
}

func TestMarkSpanResultSetsOKStatusOnSuccess(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), SpanDiagnose, "sess-3", 2)
	MarkSpanResult(span, nil)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code.String() != "Ok" {
		t.Fatalf("expected Ok status, got %v", spans[0].Status().Code)
	}
}
