package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds every murmur collector. Nothing is served over HTTP; the
// registry is read for the session summary and the optional textfile dump.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Labels: status (captured/processed/failed/dropped)
	WindowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_windows_total",
			Help: "Windows by outcome",
		},
		[]string{"status"},
	)

	// Labels: reason (trim/remainder)
	SamplesDiscarded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_samples_discarded_total",
			Help: "Captured samples thrown away by the sample buffer",
		},
		[]string{"reason"},
	)

	// Labels: engine (speech/diarization)
	EngineErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_engine_errors_total",
			Help: "Inference engine failures; each one skips a window",
		},
		[]string{"engine"},
	)

	LinesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "murmur_lines_total",
			Help: "Transcript lines emitted",
		},
	)

	QueueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "murmur_queue_depth",
			Help: "Windows waiting for the inference worker",
		},
	)

	// Labels: engine (speech/diarization)
	EngineDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "murmur_engine_duration_seconds",
			Help:    "Inference call latency per window",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

const (
	StatusCaptured  = "captured"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
)

func RecordWindow(status string) {
	WindowsTotal.WithLabelValues(status).Inc()
}

func RecordDiscard(reason string, samples int) {
	if samples > 0 {
		SamplesDiscarded.WithLabelValues(reason).Add(float64(samples))
	}
}

func RecordEngineError(engine string) {
	EngineErrors.WithLabelValues(engine).Inc()
}

func RecordEngineDuration(engine string, seconds float64) {
	EngineDuration.WithLabelValues(engine).Observe(seconds)
}

func RecordLines(n int) {
	LinesTotal.Add(float64(n))
}

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Snapshot returns the session counters keyed for logging.
func Snapshot() map[string]float64 {
	out := map[string]float64{
		"lines": counterValue(LinesTotal),
	}
	for _, s := range []string{StatusCaptured, StatusProcessed, StatusFailed, StatusDropped} {
		out["windows_"+s] = counterValue(WindowsTotal.WithLabelValues(s))
	}
	for _, r := range []string{"trim", "remainder"} {
		out["samples_"+r] = counterValue(SamplesDiscarded.WithLabelValues(r))
	}
	for _, e := range []string{"speech", "diarization"} {
		out["errors_"+e] = counterValue(EngineErrors.WithLabelValues(e))
	}
	return out
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
