package broker

import "github.com/tesseradb/tessera/routing/timeboundary"

// Config configures a Broker. The zero value is usable; Defaults() fills in
// the recommended settings.
type Config struct {
	// MetricsEnabled turns instrument registration on.
	MetricsEnabled bool
	// MetricsBackend selects the provider: "prometheus" (default), "otel",
	// or "noop".
	MetricsBackend string

	// EventsEnabled turns the broker event feed on.
	EventsEnabled bool
	// RecentEventCap bounds the feed's recent-events ring (0 uses the feed
	// default).
	RecentEventCap int

	// HealthEnabled turns health check evaluation on.
	HealthEnabled bool

	// RoutingPolicyPath points at the hot-reloaded YAML routing policy.
	// Empty disables the policy file; realtime queries then default to HLC.
	RoutingPolicyPath string

	// TimeBoundaryGranularity is the push granularity subtracted from the
	// hybrid time boundary (one of the timeboundary unit names).
	TimeBoundaryGranularity string

	// Seed fixes plan randomization for reproducible runs; 0 seeds from
	// the clock.
	Seed int64
}

// Defaults returns the recommended configuration.
func Defaults() Config {
	return Config{
		MetricsEnabled:          true,
		MetricsBackend:          "prometheus",
		EventsEnabled:           true,
		HealthEnabled:           true,
		TimeBoundaryGranularity: timeboundary.UnitDays,
	}
}
