package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys attached to profiles. Values must stay low-cardinality or
// Pyroscope's memory use grows with every distinct value.
const (
	ProfilingLabelController  = "controller"
	ProfilingLabelRoute       = "route"
	ProfilingLabelMethod      = "method"
	ProfilingLabelOperation   = "operation"
	ProfilingLabelProductType = "product_type"
)

// maxLabelValueLength caps label values before they reach Pyroscope.
const maxLabelValueLength = 128

// highCardinalityLabels are keys sanitizeLabels silently drops. Per-request
// and per-entity identifiers would blow up the profile series count.
var highCardinalityLabels = map[string]bool{
	"user_id":    true,
	"request_id": true,
	"order_id":   true,
	"trace_id":   true,
	"span_id":    true,
	"session_id": true,
}

// WithProfilingLabels runs fn with the given pprof labels applied, so the
// work inside can be sliced by label in the Pyroscope UI. The labels map is
// copied; callers may reuse it after the call returns.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// PushOperationLabels builds the label set for a tracker push of one product
// type. Product types are a small fixed enum, safe as a label value.
func PushOperationLabels(operation, productType string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation:   operation,
		ProfilingLabelProductType: productType,
	}
}

// sanitizeLabels flattens a label map into pyroscope.Labels pairs: empty and
// high-cardinality entries dropped, keys normalized to snake_case, values
// truncated, keys sorted for deterministic output.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > maxLabelValueLength {
			value = value[:maxLabelValueLength]
		}
		if sanitized := sanitizeLabelKey(key); sanitized != "" {
			pairs = append(pairs, sanitized, value)
		}
	}
	return pairs
}

// sanitizeLabelKey normalizes a key to lowercase snake_case, dropping any
// character that is not alphanumeric or underscore.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}
