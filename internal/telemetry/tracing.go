package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "playback.core"

	SpanStepExecute  = "playback.step.execute"
	SpanDiagnose     = "playback.troubleshoot.diagnose"
	SpanResolve      = "playback.troubleshoot.resolve"
	SpanHealingCall  = "playback.healing.provider"

	attrSessionID  = "playback.session_id"
	attrStepNumber = "playback.step_number"
	attrStrategy   = "playback.strategy"
	attrConfidence = "playback.confidence"
	attrStatus     = "playback.status"
)

// StartSpan opens a span under the playback-core tracer scope, tagging
// it with sessionID/stepNumber when non-zero so every span in a run can
// be correlated without threading a logger through every call.
func StartSpan(ctx context.Context, spanName, sessionID string, stepNumber int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	if sessionID != "" {
		spanAttrs = append(spanAttrs, attribute.String(attrSessionID, sessionID))
	}
	if stepNumber > 0 {
		spanAttrs = append(spanAttrs, attribute.Int(attrStepNumber, stepNumber))
	}
	spanAttrs = append(spanAttrs, attrs...)
	return otel.Tracer(traceScope).Start(ctx, spanName, trace.WithAttributes(spanAttrs...))
}

// StrategyAttr and ConfidenceAttr build the attributes StartSpan
// callers attach once a resolution strategy and its confidence are
// known.
func StrategyAttr(strategy string) attribute.KeyValue { return attribute.String(attrStrategy, strategy) }
func ConfidenceAttr(confidence float64) attribute.KeyValue {
	return attribute.Float64(attrConfidence, confidence)
}

// MarkSpanResult records err (if any) on span and sets its final status.
func MarkSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(attrStatus, "success"))
}
