package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"garment-classifier/internal/core/types"
)

// TokenUsage tracks usage counts per model.
type TokenUsage struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Recorder collects run metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	discovered      prometheus.Gauge
	results         *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	polls           *prometheus.CounterVec

	mu    sync.Mutex
	usage map[string]*TokenUsage
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garment_images_discovered",
			Help: "Number of images discovered for the current run.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garment_classifications_total",
			Help: "Classification outcomes by execution mode and outcome.",
		}, []string{"mode", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garment_tokens_total",
			Help: "Tokens reported by the provider.",
		}, []string{"model", "kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garment_request_duration_seconds",
			Help:    "Latency of online classification requests.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garment_batch_polls_total",
			Help: "Bulk job status polls by observed status.",
		}, []string{"status"}),
		usage: make(map[string]*TokenUsage),
	}

	r.registry.MustRegister(r.discovered, r.results, r.tokens, r.requestDuration, r.polls)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SetDiscovered(n int) {
	if r == nil {
		return
	}
	r.discovered.Set(float64(n))
}

func (r *Recorder) ObserveResult(mode string, res types.Result) {
	if r == nil {
		return
	}
	outcome := "success"
	if res.Failure != nil {
		outcome = string(res.Failure.Kind)
	}
	r.results.WithLabelValues(mode, outcome).Inc()
}

func (r *Recorder) ObserveUsage(model string, prompt, completion int64) {
	if r == nil {
		return
	}
	r.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	r.tokens.WithLabelValues(model, "completion").Add(float64(completion))

	r.mu.Lock()
	defer r.mu.Unlock()
	tu, ok := r.usage[model]
	if !ok {
		tu = &TokenUsage{}
		r.usage[model] = tu
	}
	tu.PromptTokens += prompt
	tu.CompletionTokens += completion
	tu.TotalTokens += prompt + completion
}

func (r *Recorder) ObserveRequest(provider string, d time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (r *Recorder) ObservePoll(status types.JobStatus) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(string(status)).Inc()
}

// Usage returns a snapshot of token usage per model.
func (r *Recorder) Usage() map[string]TokenUsage {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]TokenUsage, len(r.usage))
	for model, tu := range r.usage {
		out[model] = *tu
	}
	return out
}

// WriteTextfile dumps all metrics in the text exposition format, suitable for
// the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
