package observability

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/simgraph/internal/platform/envutil"
)

type Metrics struct {
	runs             *CounterVec
	readinessProbes  *CounterVec
	batchesCommitted *Counter
	edgesCommitted   *Counter
	batchFailures    *Counter
	batchLatency     *HistogramVec
	stageLatency     *HistogramVec
	entitiesLoaded   *Gauge
	relationPairs    *Gauge
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports METRICS_ENABLED. Disabled metrics are a nil *Metrics;
// every method is nil-safe.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry when enabled.
func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() { instance = New() })
	return instance
}

func New() *Metrics {
	return &Metrics{
		runs:             NewCounterVec("simgraph_runs_total", "Pipeline runs by outcome.", []string{"outcome"}),
		readinessProbes:  NewCounterVec("simgraph_readiness_probes_total", "Graph store readiness probes by result.", []string{"result"}),
		batchesCommitted: NewCounter("simgraph_batches_committed_total", "Edge batches committed to the graph store."),
		edgesCommitted:   NewCounter("simgraph_edges_committed_total", "Similarity edges committed to the graph store."),
		batchFailures:    NewCounter("simgraph_batch_failures_total", "Edge batches whose transaction failed."),
		batchLatency: NewHistogramVec(
			"simgraph_batch_duration_seconds",
			"Edge batch commit latency in seconds.",
			nil,
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		stageLatency: NewHistogramVec(
			"simgraph_stage_duration_seconds",
			"Pipeline stage latency in seconds by stage.",
			[]string{"stage"},
			[]float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		),
		entitiesLoaded: NewGauge("simgraph_entities_loaded", "Entities parsed from the last dataset."),
		relationPairs:  NewGauge("simgraph_relation_pairs", "Relation pairs extracted by the last run."),
		apiRequests:    NewCounterVec("simgraph_api_requests_total", "Read API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"simgraph_api_request_duration_seconds",
			"Read API latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.runs,
		m.readinessProbes,
		m.batchesCommitted,
		m.edgesCommitted,
		m.batchFailures,
		m.batchLatency,
		m.stageLatency,
		m.entitiesLoaded,
		m.relationPairs,
		m.apiRequests,
		m.apiLatency,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.Inc(strings.ToLower(strings.TrimSpace(outcome)))
}

func (m *Metrics) IncReadinessProbe(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.readinessProbes.Inc("ready")
		return
	}
	m.readinessProbes.Inc("unavailable")
}

func (m *Metrics) ObserveBatch(size int, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.batchLatency.Observe(dur.Seconds())
	if err != nil {
		m.batchFailures.Inc()
		return
	}
	m.batchesCommitted.Inc()
	m.edgesCommitted.Add(float64(size))
}

func (m *Metrics) ObserveStage(stage string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage)
}

func (m *Metrics) SetDatasetShape(entities, pairs int) {
	if m == nil {
		return
	}
	m.entitiesLoaded.Set(float64(entities))
	m.relationPairs.Set(float64(pairs))
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) BatchesCommitted() float64 {
	if m == nil {
		return 0
	}
	return m.batchesCommitted.Value()
}

func (m *Metrics) EdgesCommitted() float64 {
	if m == nil {
		return 0
	}
	return m.edgesCommitted.Value()
}
