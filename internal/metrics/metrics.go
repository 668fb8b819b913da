package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cinemastream"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	PlaybackInfoTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_info_total",
		Help:      "Playback info requests by backend and outcome.",
	}, []string{"backend", "outcome"})

	ProbeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_duration_seconds",
		Help:      "Duration of ffprobe invocations.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	ProbeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probe_failures_total",
		Help:      "Total number of failed probes.",
	})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests to library managers and the media server by service and outcome.",
	}, []string{"service", "outcome"})

	RescansTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_server_rescans_total",
		Help:      "Library rescans requested on the media server.",
	})

	TranscodeActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transcode_active_sessions",
		Help:      "Number of live transcode sessions.",
	})

	TranscodeStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcode_starts_total",
		Help:      "Total number of transcoder processes started.",
	})

	TranscodeRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcode_restarts_total",
		Help:      "Transcoder restarts by reason.",
	}, []string{"reason"})

	TranscodeRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcode_rejected_total",
		Help:      "Session requests rejected because the concurrency cap was reached.",
	})

	TranscodeStopsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcode_stops_total",
		Help:      "Stopped sessions by reason.",
	}, []string{"reason"})

	TranscodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcode_failures_total",
		Help:      "Transcoder processes that exited with an error.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PlaybackInfoTotal,
		ProbeDuration,
		ProbeFailuresTotal,
		UpstreamRequestsTotal,
		RescansTriggeredTotal,
		TranscodeActiveSessions,
		TranscodeStartsTotal,
		TranscodeRestartsTotal,
		TranscodeRejectedTotal,
		TranscodeStopsTotal,
		TranscodeFailuresTotal,
	)
}
