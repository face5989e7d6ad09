package internaldefs

import (
	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/notify"
)

// MetricsSource is what the exporters read engine metrics from.
// *staffsync.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() staffsync.MetricsSnapshot
	AuditDropped() uint64
}

// HubSource is what the exporters read hub activity from. *notify.Hub
// implements it.
type HubSource interface {
	Stats() notify.HubStats
}

type CounterDef struct {
	ID   staffsync.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   staffsync.MetricID
	Name string
	Help string
}

// HubDef describes one hub series. Gauge series go up and down; the rest are
// monotonic counters.
type HubDef struct {
	Name  string
	Help  string
	Gauge bool
	Value func(notify.HubStats) uint64
}

var CounterDefs = []CounterDef{
	{ID: staffsync.MetricLoginSuccess, Name: "staffsync_login_success_total", Help: "Successful login attempts."},
	{ID: staffsync.MetricLoginFailure, Name: "staffsync_login_failure_total", Help: "Failed login attempts."},
	{ID: staffsync.MetricLoginRateLimited, Name: "staffsync_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: staffsync.MetricRefreshSuccess, Name: "staffsync_refresh_success_total", Help: "Successful refresh exchanges."},
	{ID: staffsync.MetricRefreshFailure, Name: "staffsync_refresh_failure_total", Help: "Failed refresh exchanges."},
	{ID: staffsync.MetricRefreshRateLimited, Name: "staffsync_refresh_rate_limited_total", Help: "Rate-limited refresh exchanges."},
	{ID: staffsync.MetricAccessValid, Name: "staffsync_access_valid_total", Help: "Access tokens accepted."},
	{ID: staffsync.MetricAccessExpired, Name: "staffsync_access_expired_total", Help: "Access tokens rejected as expired."},
	{ID: staffsync.MetricAccessInvalid, Name: "staffsync_access_invalid_total", Help: "Access tokens rejected as invalid."},
	{ID: staffsync.MetricGuardMissingToken, Name: "staffsync_guard_missing_token_total", Help: "Guarded requests without a token."},
	{ID: staffsync.MetricGuardForbidden, Name: "staffsync_guard_forbidden_total", Help: "Guarded requests rejected for insufficient role."},
	{ID: staffsync.MetricPasswordRehash, Name: "staffsync_password_rehash_total", Help: "Password hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: staffsync.MetricValidateLatency, Name: "staffsync_validate_latency_seconds", Help: "Access token validation latency."},
}

var HubDefs = []HubDef{
	{Name: "staffsync_live_rooms", Help: "User rooms with at least one live connection.", Gauge: true,
		Value: func(s notify.HubStats) uint64 { return uint64(s.Rooms) }},
	{Name: "staffsync_live_connections", Help: "Joined live connections.", Gauge: true,
		Value: func(s notify.HubStats) uint64 { return uint64(s.Connections) }},
	{Name: "staffsync_hub_delivered_total", Help: "Events delivered to live connections.",
		Value: func(s notify.HubStats) uint64 { return s.Delivered }},
	{Name: "staffsync_hub_dropped_total", Help: "Broadcasts that reached no connection.",
		Value: func(s notify.HubStats) uint64 { return s.Dropped }},
	{Name: "staffsync_hub_evicted_total", Help: "Live connections evicted after a failed send.",
		Value: func(s notify.HubStats) uint64 { return s.Evicted }},
}

const (
	AuditDroppedName = "staffsync_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the upper bounds in seconds of the first seven buckets.
// The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in exporters without labels.
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

// NormalizeBuckets pads or truncates raw to eight buckets.
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
