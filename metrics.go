package sessionkit

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts failed registrations.
	MetricRegisterFailure
	// MetricLogout counts logouts.
	MetricLogout
	// MetricRestoreSuccess counts sessions rebuilt from a persisted credential.
	MetricRestoreSuccess
	// MetricRestoreDiscarded counts loads that found no usable credential.
	MetricRestoreDiscarded
	// MetricRefreshSuccess counts refresh round-trips that settled cleanly.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh round-trips that failed.
	MetricRefreshFailure
	// MetricRefreshSkippedCooldown counts refreshes skipped inside a cooldown window.
	MetricRefreshSkippedCooldown
	// MetricRefreshSuppressed counts circuit-breaker trips.
	MetricRefreshSuppressed
	// MetricRefreshFallback counts refreshes that fell back to the token-refresh endpoint.
	MetricRefreshFallback
	// MetricRoleChanged counts detected server-side role changes.
	MetricRoleChanged
	// MetricCredentialRefreshSuccess counts successful on-demand credential mints.
	MetricCredentialRefreshSuccess
	// MetricCredentialRefreshFailure counts failed on-demand credential mints.
	MetricCredentialRefreshFailure

	metricIDCount
)

// MetricDef pairs a MetricID with its exposition name and help text.
type MetricDef struct {
	ID   MetricID
	Name string
	Help string
}

// MetricDefs lists every counter in exposition order. Exporters iterate this
// instead of hard-coding IDs.
var MetricDefs = []MetricDef{
	{MetricLoginSuccess, "sessionkit_login_success_total", "Successful logins."},
	{MetricLoginFailure, "sessionkit_login_failure_total", "Failed logins."},
	{MetricRegisterSuccess, "sessionkit_register_success_total", "Successful registrations."},
	{MetricRegisterFailure, "sessionkit_register_failure_total", "Failed registrations."},
	{MetricLogout, "sessionkit_logout_total", "Logouts."},
	{MetricRestoreSuccess, "sessionkit_restore_success_total", "Sessions rebuilt from a persisted credential."},
	{MetricRestoreDiscarded, "sessionkit_restore_discarded_total", "Loads that found no usable credential."},
	{MetricRefreshSuccess, "sessionkit_refresh_success_total", "Refresh round-trips that settled cleanly."},
	{MetricRefreshFailure, "sessionkit_refresh_failure_total", "Refresh round-trips that failed."},
	{MetricRefreshSkippedCooldown, "sessionkit_refresh_skipped_cooldown_total", "Refreshes skipped inside a cooldown window."},
	{MetricRefreshSuppressed, "sessionkit_refresh_suppressed_total", "Circuit-breaker trips on consecutive refresh attempts."},
	{MetricRefreshFallback, "sessionkit_refresh_fallback_total", "Refreshes that fell back to the token-refresh endpoint."},
	{MetricRoleChanged, "sessionkit_role_changed_total", "Detected server-side role changes."},
	{MetricCredentialRefreshSuccess, "sessionkit_credential_refresh_success_total", "Successful on-demand credential mints."},
	{MetricCredentialRefreshFailure, "sessionkit_credential_refresh_failure_total", "Failed on-demand credential mints."},
}

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a [Metrics] instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Safe to call concurrently with Inc.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snapshot
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snapshot.Counters[id] = m.counters[id].Load()
	}
	return snapshot
}
