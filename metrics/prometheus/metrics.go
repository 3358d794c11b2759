// Package prometheus exposes interview-runtime metrics: phase transitions,
// LLM provider calls, Proctor detections, ASR stream interruptions, client
// frame validation, and Answer Scorer latency.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "interviewd"

var (
	// sessionsActive is a gauge of currently active interview sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active interview sessions",
		},
	)

	// sessionDuration is a histogram of total session duration.
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of total interview session duration in seconds",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"status"}, // status: completed, failed
	)

	// phaseTransitionsTotal is a counter of phase transitions.
	phaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Total number of interview phase transitions",
		},
		[]string{"phase"},
	)

	// providerRequestDuration is a histogram of LLM provider API call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// providerRequestsTotal is a counter of provider API calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of LLM provider API calls",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	// providerTokensTotal is a counter of tokens consumed by provider calls.
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed by provider calls",
		},
		[]string{"provider", "model", "type"}, // type: input, output, cached
	)

	// providerCostTotal is a counter of total cost from provider calls.
	providerCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_total",
			Help:      "Total cost in USD from provider calls",
		},
		[]string{"provider", "model"},
	)

	// proctorDetectionsTotal is a counter of Proctor inspection results.
	proctorDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proctor_detections_total",
			Help:      "Total number of Proctor person-count inspections, by outcome",
		},
		[]string{"outcome"}, // outcome: pass, cheat
	)

	// asrReconnectsTotal is a counter of ASR stream interruptions.
	asrReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_stream_interruptions_total",
			Help:      "Total number of transcription client stream interruptions",
		},
		[]string{"reason"},
	)

	// validationsTotal is a counter of inbound client frame validations.
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_frame_validations_total",
			Help:      "Total number of inbound client frame validations",
		},
		[]string{"message_type", "status"}, // status: passed, failed
	)

	// scorerLatency is a histogram of Answer Scorer per-dimension latency.
	scorerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scorer_dimension_duration_seconds",
			Help:      "Duration of one Answer Scorer rubric-dimension scoring call",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"dimension"},
	)

	// allMetrics is the list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionDuration,
		phaseTransitionsTotal,
		providerRequestDuration,
		providerRequestsTotal,
		providerTokensTotal,
		providerCostTotal,
		proctorDetectionsTotal,
		asrReconnectsTotal,
		validationsTotal,
		scorerLatency,
	}
)

// RecordSessionStart records a session start.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a session completion or failure.
func RecordSessionEnd(status string, durationSeconds float64) {
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordPhaseTransition records one interview phase transition.
func RecordPhaseTransition(phase string) {
	phaseTransitionsTotal.WithLabelValues(phase).Inc()
}

// RecordProviderRequest records an LLM provider API call.
func RecordProviderRequest(provider, model, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

// RecordProviderTokens records token consumption.
func RecordProviderTokens(provider, model string, inputTokens, outputTokens, cachedTokens int) {
	if inputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
	if cachedTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "cached").Add(float64(cachedTokens))
	}
}

// RecordProviderCost records cost from a provider call.
func RecordProviderCost(provider, model string, cost float64) {
	if cost > 0 {
		providerCostTotal.WithLabelValues(provider, model).Add(cost)
	}
}

// RecordProctorDetection records one Proctor inspection result.
func RecordProctorDetection(cheat bool) {
	outcome := "pass"
	if cheat {
		outcome = "cheat"
	}
	proctorDetectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordASRReconnect records an ASR stream interruption.
func RecordASRReconnect(reason string) {
	asrReconnectsTotal.WithLabelValues(reason).Inc()
}

// RecordValidation records an inbound client frame validation outcome.
func RecordValidation(messageType, status string) {
	validationsTotal.WithLabelValues(messageType, status).Inc()
}

// RecordScorerLatency records one Answer Scorer rubric-dimension call.
func RecordScorerLatency(dimension string, durationSeconds float64) {
	scorerLatency.WithLabelValues(dimension).Observe(durationSeconds)
}
