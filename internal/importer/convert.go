package importer

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/Mr-Dark-debug/spanview/internal/database"
	"github.com/Mr-Dark-debug/spanview/internal/trace"
)

const (
	serviceNameKey = "service.name"
	unknownService = "unknown_service"

	traceIDLen = 16
	spanIDLen  = 8
)

// ConvertResourceSpans flattens OTLP resource spans into stored spans.
// Resource attributes other than service.name become process tags and
// span events become logs.
func ConvertResourceSpans(resourceSpans []*tracepb.ResourceSpans) []*database.Span {
	var out []*database.Span
	for _, rs := range resourceSpans {
		service := unknownService
		var procTags []database.KeyValue
		for _, attr := range rs.GetResource().GetAttributes() {
			if attr.GetKey() == serviceNameKey {
				if sv := attr.GetValue().GetStringValue(); sv != "" {
					service = sv
				}
				continue
			}
			procTags = append(procTags, keyValue(attr))
		}

		for _, ss := range rs.GetScopeSpans() {
			scope := ss.GetScope()
			for _, sp := range ss.GetSpans() {
				out = append(out, convertSpan(sp, service, procTags, scope))
			}
		}
	}
	return out
}

func convertSpan(sp *tracepb.Span, service string, procTags []database.KeyValue, scope *commonpb.InstrumentationScope) *database.Span {
	start := int64(sp.GetStartTimeUnixNano())
	end := int64(sp.GetEndTimeUnixNano())
	dur := end - start
	if dur < 0 {
		dur = 0
	}

	s := &database.Span{
		SpanID:        idString(sp.GetSpanId(), spanIDLen),
		TraceID:       idString(sp.GetTraceId(), traceIDLen),
		ServiceName:   service,
		OperationName: sp.GetName(),
		Kind:          spanKind(sp.GetKind()),
		StartTime:     start,
		DurationNs:    dur,
		StatusCode:    sp.GetStatus().GetCode().String(),
		ProcessTags:   procTags,
	}
	if parent := idString(sp.GetParentSpanId(), spanIDLen); parent != "" {
		s.ParentSpanID = &parent
	}
	if msg := sp.GetStatus().GetMessage(); msg != "" {
		s.StatusMessage = &msg
	}

	for _, attr := range sp.GetAttributes() {
		s.Tags = append(s.Tags, keyValue(attr))
	}
	if name := scope.GetName(); name != "" {
		s.Tags = append(s.Tags, database.KeyValue{Key: "otel.scope.name", Value: name})
		if v := scope.GetVersion(); v != "" {
			s.Tags = append(s.Tags, database.KeyValue{Key: "otel.scope.version", Value: v})
		}
	}

	for _, ev := range sp.GetEvents() {
		fields := []database.KeyValue{{Key: "event", Value: ev.GetName()}}
		for _, attr := range ev.GetAttributes() {
			fields = append(fields, keyValue(attr))
		}
		s.Logs = append(s.Logs, database.SpanLog{
			Timestamp: int64(ev.GetTimeUnixNano()),
			Fields:    fields,
		})
	}
	return s
}

// idString renders an OTLP id as lowercase hex. The collector's JSON
// encoding writes ids as hex while protojson reads bytes fields as
// base64, so a hex id arrives base64-decoded at 3/2 of its raw length;
// re-encoding restores the original text.
func idString(b []byte, rawLen int) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) == rawLen*3/2 {
		return strings.ToLower(base64.StdEncoding.EncodeToString(b))
	}
	return hex.EncodeToString(b)
}

func spanKind(k tracepb.Span_SpanKind) string {
	switch k {
	case tracepb.Span_SPAN_KIND_CLIENT:
		return trace.KindClient
	case tracepb.Span_SPAN_KIND_SERVER:
		return trace.KindServer
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return trace.KindProducer
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return trace.KindConsumer
	case tracepb.Span_SPAN_KIND_INTERNAL:
		return trace.KindInternal
	default:
		return ""
	}
}

func keyValue(attr *commonpb.KeyValue) database.KeyValue {
	return database.KeyValue{Key: attr.GetKey(), Value: anyValueString(attr.GetValue())}
}

func anyValueString(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	switch x := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(x.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(x.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(x.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(x.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		parts := make([]string, 0, len(x.ArrayValue.GetValues()))
		for _, e := range x.ArrayValue.GetValues() {
			parts = append(parts, anyValueString(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *commonpb.AnyValue_KvlistValue:
		parts := make([]string, 0, len(x.KvlistValue.GetValues()))
		for _, kv := range x.KvlistValue.GetValues() {
			parts = append(parts, kv.GetKey()+"="+anyValueString(kv.GetValue()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}
