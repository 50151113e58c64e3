package metrics

import (
	"fmt"
	"time"
)

// LatencySummary mirrors the percentile shape the rest of the pack reports
// latency in, expressed in time.Duration rather than raw microseconds.
type LatencySummary struct {
	Count              int
	Min, Max, Avg      time.Duration
	P50, P90, P95, P99 time.Duration
}

func durationSummary(p Percentiles) LatencySummary {
	us := func(v float64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencySummary{
		Count: p.Count,
		Min:   us(p.Min),
		Max:   us(p.Max),
		Avg:   us(p.Avg),
		P50:   us(p.P50),
		P90:   us(p.P90),
		P95:   us(p.P95),
		P99:   us(p.P99),
	}
}

// Snapshot is a point-in-time view over a Memory sink's counters and
// histograms for one label combination, suitable for logging or ad-hoc
// export without standing up a full scrape endpoint.
type Snapshot struct {
	Timestamp time.Time

	Requests     int64
	Misses       int64
	Disabled     int64
	Errors       int64
	Invalidations int64

	GetLatency          LatencySummary
	FallbackLatency     LatencySummary
	SerializationLatency LatencySummary
}

// Snapshot captures the current counters and histograms for the given
// label set.
func (m *Memory) Snapshot(l Labels) Snapshot {
	return Snapshot{
		Timestamp:            time.Now(),
		Requests:             m.Count("request", l),
		Misses:               m.Count("miss", l),
		Disabled:             m.Count("disabled", l),
		Errors:               m.Count("error", l),
		Invalidations:        m.Count("invalidation", l),
		GetLatency:           durationSummary(m.HistogramStats("get_timer", l)),
		FallbackLatency:      durationSummary(m.HistogramStats("fallback_timer", l)),
		SerializationLatency: durationSummary(m.HistogramStats("serialization_timer", l)),
	}
}

// ToFlatMap renders a snapshot as name -> value pairs, the same
// line-oriented export shape used for ad-hoc Prometheus-less debugging.
func (s Snapshot) ToFlatMap(prefix string) map[string]float64 {
	out := make(map[string]float64, 12)
	out[fmt.Sprintf("%s_request_counter", prefix)] = float64(s.Requests)
	out[fmt.Sprintf("%s_miss_counter", prefix)] = float64(s.Misses)
	out[fmt.Sprintf("%s_disabled_counter", prefix)] = float64(s.Disabled)
	out[fmt.Sprintf("%s_error_counter", prefix)] = float64(s.Errors)
	out[fmt.Sprintf("%s_invalidation_counter", prefix)] = float64(s.Invalidations)
	out[fmt.Sprintf("%s_get_timer_p50_us", prefix)] = float64(s.GetLatency.P50.Microseconds())
	out[fmt.Sprintf("%s_get_timer_p99_us", prefix)] = float64(s.GetLatency.P99.Microseconds())
	out[fmt.Sprintf("%s_fallback_timer_p50_us", prefix)] = float64(s.FallbackLatency.P50.Microseconds())
	out[fmt.Sprintf("%s_fallback_timer_p99_us", prefix)] = float64(s.FallbackLatency.P99.Microseconds())
	return out
}
