package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus is a Sink backed by github.com/prometheus/client_golang.
// Metric names follow the <prefix>gcache_* convention; use_case and
// key_type are carried on every series, layer/reason/stage/direction are
// added where the metric in question defines them.
type Prometheus struct {
	requests      *prometheus.CounterVec
	misses        *prometheus.CounterVec
	disabled      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	invalidations *prometheus.CounterVec

	getTimer           *prometheus.HistogramVec
	fallbackTimer      *prometheus.HistogramVec
	serializationTimer *prometheus.HistogramVec
	sizeHistogram      *prometheus.HistogramVec
}

// NewPrometheus registers the gcache metric family under the given
// namespace and returns a ready-to-use Sink. Pass a dedicated
// *prometheus.Registry via registerer in tests to avoid collisions with
// prometheus.DefaultRegisterer across repeated construction.
func NewPrometheus(namespace string, registerer prometheus.Registerer) *Prometheus {
	factory := promauto.With(registerer)

	cacheLabels := []string{"use_case", "key_type", "layer"}

	return &Prometheus{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gcache_request_counter",
			Help:      "Total cached-function invocations.",
		}, []string{"use_case", "key_type"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gcache_miss_counter",
			Help:      "Cache-layer misses.",
		}, cacheLabels),
		disabled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gcache_disabled_counter",
			Help:      "Calls bypassed to the underlying function, by reason.",
		}, []string{"use_case", "key_type", "reason"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gcache_error_counter",
			Help:      "Fail-open errors, by stage.",
		}, []string{"use_case", "key_type", "stage"}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gcache_invalidation_counter",
			Help:      "Watermark invalidations issued.",
		}, []string{"use_case", "key_type"}),
		getTimer: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gcache_get_timer",
			Help:      "Cache-lookup wall time, excluding fallback execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, cacheLabels),
		fallbackTimer: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gcache_fallback_timer",
			Help:      "Underlying function wall time on a total miss.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"use_case", "key_type"}),
		serializationTimer: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gcache_serialization_timer",
			Help:      "Serializer/deserializer wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"use_case", "key_type", "direction"}),
		sizeHistogram: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gcache_size_histogram",
			Help:      "Serialized payload size in bytes on shared-tier writes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"use_case", "key_type"}),
	}
}

func (p *Prometheus) IncRequest(l Labels) {
	p.requests.WithLabelValues(l.UseCase, l.KeyType).Inc()
}

func (p *Prometheus) IncMiss(l Labels) {
	p.misses.WithLabelValues(l.UseCase, l.KeyType, l.Layer).Inc()
}

func (p *Prometheus) IncDisabled(l Labels) {
	p.disabled.WithLabelValues(l.UseCase, l.KeyType, l.Reason).Inc()
}

func (p *Prometheus) IncError(l Labels) {
	p.errors.WithLabelValues(l.UseCase, l.KeyType, l.Stage).Inc()
}

func (p *Prometheus) IncInvalidation(l Labels) {
	p.invalidations.WithLabelValues(l.UseCase, l.KeyType).Inc()
}

func (p *Prometheus) ObserveGetTimer(l Labels, d time.Duration) {
	p.getTimer.WithLabelValues(l.UseCase, l.KeyType, l.Layer).Observe(d.Seconds())
}

func (p *Prometheus) ObserveFallbackTimer(l Labels, d time.Duration) {
	p.fallbackTimer.WithLabelValues(l.UseCase, l.KeyType).Observe(d.Seconds())
}

func (p *Prometheus) ObserveSerializationTimer(l Labels, d time.Duration) {
	p.serializationTimer.WithLabelValues(l.UseCase, l.KeyType, l.Direction).Observe(d.Seconds())
}

func (p *Prometheus) ObserveSize(l Labels, bytes int) {
	p.sizeHistogram.WithLabelValues(l.UseCase, l.KeyType).Observe(float64(bytes))
}
