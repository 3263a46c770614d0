package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authflow"
)

// CounterDef binds a client counter to its exported name.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef binds a client histogram to its exported name.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Interactive logins that stored a session."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Rejected interactive logins."},
	{ID: authflow.MetricRateLimited, Name: "authflow_rate_limited_total", Help: "Attempts refused by the attempt limiter."},
	{ID: authflow.MetricValidationRejected, Name: "authflow_validation_rejected_total", Help: "Inputs refused before any network call."},
	{ID: authflow.MetricRegisterSuccess, Name: "authflow_register_success_total", Help: "Accepted registrations."},
	{ID: authflow.MetricRegisterFailure, Name: "authflow_register_failure_total", Help: "Rejected registrations."},
	{ID: authflow.MetricOTPVerifySuccess, Name: "authflow_otp_verify_success_total", Help: "Verified one-time passcodes."},
	{ID: authflow.MetricOTPVerifyFailure, Name: "authflow_otp_verify_failure_total", Help: "Rejected one-time passcodes."},
	{ID: authflow.MetricRegistrationComplete, Name: "authflow_registration_complete_total", Help: "Completed registrations."},
	{ID: authflow.MetricPasswordResetRequest, Name: "authflow_password_reset_request_total", Help: "Accepted password reset requests."},
	{ID: authflow.MetricPasswordResetSuccess, Name: "authflow_password_reset_success_total", Help: "Completed password resets."},
	{ID: authflow.MetricPasswordResetFailure, Name: "authflow_password_reset_failure_total", Help: "Failed password reset requests and completions."},
	{ID: authflow.MetricRefreshSuccess, Name: "authflow_refresh_success_total", Help: "Access token refreshes."},
	{ID: authflow.MetricRefreshFailure, Name: "authflow_refresh_failure_total", Help: "Refreshes that signed the user out."},
	{ID: authflow.MetricSessionRestored, Name: "authflow_session_restored_total", Help: "Session checks that found a usable session."},
	{ID: authflow.MetricSessionMissing, Name: "authflow_session_missing_total", Help: "Session checks that ended signed out."},
	{ID: authflow.MetricProfileRefreshFailed, Name: "authflow_profile_refresh_failed_total", Help: "Profile fetches the server rejected."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Completed logouts."},
	{ID: authflow.MetricLogoutFailure, Name: "authflow_logout_failure_total", Help: "Logouts that left the user signed in."},
	{ID: authflow.MetricGuardRejected, Name: "authflow_guard_rejected_total", Help: "Events dropped by a transition guard."},
	{ID: authflow.MetricEventIgnored, Name: "authflow_event_ignored_total", Help: "Events the current state does not accept."},
	{ID: authflow.MetricStaleResult, Name: "authflow_stale_result_total", Help: "Invocation results that arrived after their state was left."},
	{ID: authflow.MetricOperationTimeout, Name: "authflow_operation_timeout_total", Help: "Client calls that hit their timeout."},
	{ID: authflow.MetricBackgroundRefresh, Name: "authflow_background_refresh_total", Help: "Refreshes started by the background refresher."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricOperationLatency, Name: "authflow_operation_latency_seconds", Help: "Latency of settled client calls."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "authflow_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds holds the finite bucket bounds in seconds. The last client
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels returns the "le" label of every client bucket, "+Inf" last.
func BucketLabels() []string {
	out := make([]string, 0, len(HistogramUpperBounds)+1)
	for _, le := range HistogramUpperBounds {
		out = append(out, strconv.FormatFloat(le, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// Series is a client histogram in the cumulative form exporters publish.
type Series struct {
	Cumulative [8]uint64
	Count      uint64
}

// SeriesOf converts the raw per-bucket counts of a client histogram.
func SeriesOf(raw []uint64) Series {
	c := CumulativeBuckets(NormalizeBuckets(raw))
	return Series{Cumulative: c, Count: c[len(c)-1]}
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
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
