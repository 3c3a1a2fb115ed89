// Package metrics exposes Prometheus instrumentation for the voice chat
// server. All metrics are registered against an injected Registerer so
// tests can use an isolated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector used by the server.
type Metrics struct {
	// Connection metrics
	ActiveConnections prometheus.Gauge
	MessagesSent      prometheus.Counter
	SendFailures      prometheus.Counter

	// Audio pipeline metrics
	ChunksIngested prometheus.Counter
	ChunksDropped  prometheus.Counter

	// Transcription metrics
	TranscriptionSuccesses  prometheus.Counter
	TranscriptionFailures   prometheus.Counter
	TranscriptionDuration   prometheus.Histogram
	TranscriptionConfidence prometheus.Histogram

	// Synthesis metrics
	AudioFramesStreamed prometheus.Counter
	SynthesisFailures   prometheus.Counter

	// Auto-chat metrics
	ActiveAutoChatSessions prometheus.Gauge
	ScheduledMessagesSent  prometheus.Counter
}

// New creates and registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicechat_active_connections",
			Help: "Current number of open WebSocket connections",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_messages_sent_total",
			Help: "Total number of frames written to connections",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_send_failures_total",
			Help: "Total number of failed sends that removed a connection",
		}),
		ChunksIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_audio_chunks_ingested_total",
			Help: "Total number of audio chunks accepted into the queue",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_audio_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the queue was full",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_transcription_successes_total",
			Help: "Total number of chunks that produced a transcription result",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_transcription_failures_total",
			Help: "Total number of recognition engine errors",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_transcription_duration_seconds",
			Help:    "Time spent in the recognition engine per chunk",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		TranscriptionConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_transcription_confidence",
			Help:    "Confidence score of transcription results",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		AudioFramesStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_audio_frames_streamed_total",
			Help: "Total number of binary audio frames streamed to clients",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_synthesis_failures_total",
			Help: "Total number of synthesis engine errors",
		}),
		ActiveAutoChatSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicechat_active_auto_chat_sessions",
			Help: "Current number of active auto-chat sessions",
		}),
		ScheduledMessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_scheduled_messages_sent_total",
			Help: "Total number of scheduler-originated messages delivered",
		}),
	}
}
