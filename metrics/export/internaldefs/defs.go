package internaldefs

import (
	"github.com/MrEthical07/trustcore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   trustcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   trustcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: trustcore.MetricSessionIssued, Name: "trustcore_session_issued_total", Help: "Session tokens issued."},
	{ID: trustcore.MetricSessionResolved, Name: "trustcore_session_resolved_total", Help: "Session cookies resolved to an identity."},
	{ID: trustcore.MetricSessionRejected, Name: "trustcore_session_rejected_total", Help: "Session cookies that resolved anonymous."},
	{ID: trustcore.MetricSignInSuccess, Name: "trustcore_signin_success_total", Help: "Successful sign-ins."},
	{ID: trustcore.MetricSignInFailure, Name: "trustcore_signin_failure_total", Help: "Failed sign-ins."},
	{ID: trustcore.MetricSignInVerifierFallback, Name: "trustcore_signin_verifier_fallback_total", Help: "Sign-ins that fell back to the asserted subject."},
	{ID: trustcore.MetricAPIKeyAccepted, Name: "trustcore_apikey_accepted_total", Help: "API key calls admitted and charged."},
	{ID: trustcore.MetricAPIKeyUnauthenticated, Name: "trustcore_apikey_unauthenticated_total", Help: "API key calls with a missing or unknown key."},
	{ID: trustcore.MetricAPIKeyQuotaExceeded, Name: "trustcore_apikey_quota_exceeded_total", Help: "API key calls denied for exhausted quota."},
	{ID: trustcore.MetricAPIKeyUpstreamError, Name: "trustcore_apikey_upstream_error_total", Help: "API key calls failed by the credential store."},
	{ID: trustcore.MetricEdgeAllowed, Name: "trustcore_edge_allowed_total", Help: "Protected requests admitted by the edge throttle."},
	{ID: trustcore.MetricEdgeThrottled, Name: "trustcore_edge_throttled_total", Help: "Protected requests rejected by the edge throttle."},
	{ID: trustcore.MetricDistributedAllowed, Name: "trustcore_distributed_allowed_total", Help: "Distributed counter hits within the limit."},
	{ID: trustcore.MetricDistributedDenied, Name: "trustcore_distributed_denied_total", Help: "Distributed counter hits over the limit."},
	{ID: trustcore.MetricDistributedError, Name: "trustcore_distributed_error_total", Help: "Distributed counter backend failures."},
	{ID: trustcore.MetricResourceThrottled, Name: "trustcore_resource_throttled_total", Help: "Named resource uses over budget."},
	{ID: trustcore.MetricFulfillmentDispatched, Name: "trustcore_fulfillment_dispatched_total", Help: "Jobs filed and notified."},
	{ID: trustcore.MetricFulfillmentSkipped, Name: "trustcore_fulfillment_skipped_total", Help: "Fulfillment calls for missing or non-pending jobs."},
	{ID: trustcore.MetricFulfillmentLostRace, Name: "trustcore_fulfillment_lost_race_total", Help: "Fulfillment calls beaten by a concurrent dispatcher."},
	{ID: trustcore.MetricFulfillmentNoDestination, Name: "trustcore_fulfillment_no_destination_total", Help: "Jobs left pending without a destination address."},
	{ID: trustcore.MetricFulfillmentSendFailed, Name: "trustcore_fulfillment_send_failed_total", Help: "Notifications that failed after the job was filed."},
	{ID: trustcore.MetricFulfillmentDeferred, Name: "trustcore_fulfillment_deferred_total", Help: "Jobs left pending because the notifier refused admission."},
	{ID: trustcore.MetricFulfillmentStoreError, Name: "trustcore_fulfillment_store_error_total", Help: "Fulfillment calls failed by the job store."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: trustcore.MetricAuthorizeLatency, Name: "trustcore_authorize_latency_seconds", Help: "Authorize latency histogram."},
	{ID: trustcore.MetricFulfillLatency, Name: "trustcore_fulfill_latency_seconds", Help: "Fulfill latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "trustcore_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for instrument names.
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

// NormalizeBuckets copies raw into the fixed eight-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
