package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric family the services record.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Ingestion
	IngestRecordsTotal  CounterVec
	IngestJobsTotal     CounterVec
	IngestJobDuration   HistogramVec
	IngestActiveWorkers GaugeVec
	IngestCommitted     GaugeVec

	// Citation graph
	EdgesWrittenTotal    CounterVec
	UnresolvedTotal      CounterVec
	BadgeChangesTotal    CounterVec
	BadgeComputeDuration HistogramVec
	MirrorErrorsTotal    CounterVec

	// Search
	SearchRequestsTotal CounterVec
	SearchDuration      HistogramVec
	SearchDegraded      CounterVec
	SearchResultCount   HistogramVec

	// Infrastructure
	CacheHitsTotal    CounterVec
	CacheMissesTotal  CounterVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultJobDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultFastBuckets         = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25}
	DefaultResultCountBuckets  = []float64{0, 1, 5, 10, 25, 50, 100}
)

func NewAppMetrics(c MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = c.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = c.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.GRPCRequestsTotal = c.RegisterCounter("grpc_requests_total", "gRPC calls by method and status code", "service", "method", "code")
	m.GRPCRequestDuration = c.RegisterHistogram("grpc_request_duration_seconds", "gRPC call duration", DefaultHTTPDurationBuckets, "service", "method")

	m.IngestRecordsTotal = c.RegisterCounter("ingest_records_total", "Feed records by outcome", "outcome")
	m.IngestJobsTotal = c.RegisterCounter("ingest_jobs_total", "Finished ingestion jobs by final status", "status")
	m.IngestJobDuration = c.RegisterHistogram("ingest_job_duration_seconds", "Ingestion job wall time", DefaultJobDurationBuckets, "status")
	m.IngestActiveWorkers = c.RegisterGauge("ingest_active_workers", "Workers processing a record", "job")
	m.IngestCommitted = c.RegisterGauge("ingest_committed_offset", "Last checkpointed feed offset", "job")

	m.EdgesWrittenTotal = c.RegisterCounter("citation_edges_written_total", "Edge writes by outcome", "outcome")
	m.UnresolvedTotal = c.RegisterCounter("citation_unresolved_total", "Citations that did not resolve", "reason")
	m.BadgeChangesTotal = c.RegisterCounter("citation_badge_changes_total", "Badge transitions", "from", "to")
	m.BadgeComputeDuration = c.RegisterHistogram("citation_badge_compute_seconds", "Badge recompute duration", DefaultFastBuckets, "source")
	m.MirrorErrorsTotal = c.RegisterCounter("citation_mirror_errors_total", "Failed graph mirror writes", "operation")

	m.SearchRequestsTotal = c.RegisterCounter("search_requests_total", "Search requests by mode", "mode", "status")
	m.SearchDuration = c.RegisterHistogram("search_duration_seconds", "Search latency", DefaultHTTPDurationBuckets, "mode")
	m.SearchDegraded = c.RegisterCounter("search_degraded_total", "Searches that lost a ranking source", "source")
	m.SearchResultCount = c.RegisterHistogram("search_result_count", "Results returned per search", DefaultResultCountBuckets, "mode")

	m.CacheHitsTotal = c.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = c.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.HealthCheckStatus = c.RegisterGauge("health_check_status", "Component health (1=up, 0=down)", "component")
	m.ErrorsTotal = c.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// NewNopMetrics returns metrics that record nothing.
func NewNopMetrics() *AppMetrics { return NewAppMetrics(NewNopCollector()) }

func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

func (m *AppMetrics) RecordSearch(mode string, d time.Duration, results int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SearchRequestsTotal.WithLabelValues(mode, status).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
	if err == nil {
		m.SearchResultCount.WithLabelValues(mode).Observe(float64(results))
	}
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

func (m *AppMetrics) RecordJob(status string, d time.Duration) {
	m.IngestJobsTotal.WithLabelValues(status).Inc()
	m.IngestJobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *AppMetrics) RecordHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

//Personal.AI order the ending
