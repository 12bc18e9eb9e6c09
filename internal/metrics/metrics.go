package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "abandoned_explorer"

// Metrics holds the Prometheus collectors for scraping, storage and geocoding.
type Metrics struct {
	ElementsFetched   prometheus.Counter
	ElementsSkipped   prometheus.Counter
	LocationsSaved    *prometheus.CounterVec // labels: outcome={inserted,skipped,failed}
	ScopesCompleted   *prometheus.CounterVec // labels: outcome={succeeded,failed,degraded}
	QueryDuration     prometheus.Histogram
	ScrapeRunning     prometheus.Gauge
	StreamSubscribers prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: method={forward,reverse}, result={hit,miss}
}

func build() *Metrics {
	return &Metrics{
		ElementsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_fetched_total",
			Help:      "Total elements returned by Overpass queries.",
		}),
		ElementsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_skipped_total",
			Help:      "Elements dropped during normalization.",
		}),
		LocationsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_saved_total",
			Help:      "Store outcomes per location record.",
		}, []string{"outcome"}),
		ScopesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_total",
			Help:      "Scrape scopes by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overpass_query_duration_seconds",
			Help:      "Duration of Overpass interpreter requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ScrapeRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scrape_running",
			Help:      "1 while a scrape run is in progress.",
		}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected location stream clients.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Nominatim requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ElementsFetched,
		m.ElementsSkipped,
		m.LocationsSaved,
		m.ScopesCompleted,
		m.QueryDuration,
		m.ScrapeRunning,
		m.StreamSubscribers,
		m.GeocodeRequests,
		m.GeocodeCache,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting registers with a fresh registry so tests can build
// as many instances as they like.
func NewMetricsForTesting() *Metrics {
	m := build()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
