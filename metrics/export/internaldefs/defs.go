package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// Sample binds one engine counter to a label value inside its family.
type Sample struct {
	ID    goGate.MetricID
	Value string
}

// CounterFamily is one exported counter. Families with a Label expose one
// series per sample; unlabeled families have exactly one sample.
type CounterFamily struct {
	Name    string
	Help    string
	Label   string
	Samples []Sample
}

// HistogramDef names an engine histogram.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gogate_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

var CounterFamilies = []CounterFamily{
	{
		Name:  "gogate_logins_total",
		Help:  "Login attempts by result.",
		Label: "result",
		Samples: []Sample{
			{ID: goGate.MetricLoginSuccess, Value: "success"},
			{ID: goGate.MetricLoginFailure, Value: "failure"},
		},
	},
	{
		Name:  "gogate_session_events_total",
		Help:  "Session lifecycle events.",
		Label: "event",
		Samples: []Sample{
			{ID: goGate.MetricSessionCreated, Value: "created"},
			{ID: goGate.MetricSessionConflict, Value: "conflict"},
			{ID: goGate.MetricSessionValidated, Value: "validated"},
			{ID: goGate.MetricSessionRejected, Value: "rejected"},
			{ID: goGate.MetricSessionRevoked, Value: "revoked"},
			{ID: goGate.MetricSessionRevokeAll, Value: "revoke_all"},
			{ID: goGate.MetricSessionTouchFailed, Value: "touch_failed"},
			{ID: goGate.MetricSessionsPurged, Value: "purged"},
		},
	},
	{
		Name:    "gogate_token_invalid_total",
		Help:    "Bearer tokens that failed verification.",
		Samples: []Sample{{ID: goGate.MetricTokenInvalid}},
	},
	{
		Name:  "gogate_device_events_total",
		Help:  "Device trust anomalies and rejections.",
		Label: "event",
		Samples: []Sample{
			{ID: goGate.MetricDeviceAnomaly, Value: "anomaly"},
			{ID: goGate.MetricDeviceRejected, Value: "rejected"},
		},
	},
	{
		Name:  "gogate_rate_limit_events_total",
		Help:  "Rate limit rejections and fail-open decisions.",
		Label: "event",
		Samples: []Sample{
			{ID: goGate.MetricRateLimitHit, Value: "hit"},
			{ID: goGate.MetricRateLimitDegraded, Value: "degraded"},
		},
	},
	{
		Name:    "gogate_csrf_rejected_total",
		Help:    "Requests rejected by the CSRF guard.",
		Samples: []Sample{{ID: goGate.MetricCSRFRejected}},
	},
	{
		Name:  "gogate_authz_decisions_total",
		Help:  "Authorization decisions.",
		Label: "decision",
		Samples: []Sample{
			{ID: goGate.MetricAuthzAllowed, Value: "allowed"},
			{ID: goGate.MetricAuthzDenied, Value: "denied"},
			{ID: goGate.MetricAuthzOverride, Value: "override"},
		},
	},
}

var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricGateLatency, Name: "gogate_gate_latency_seconds", Help: "Request gate latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// CumulativeBuckets converts per-bucket counts into the running totals both
// exporters publish. Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(out); i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
