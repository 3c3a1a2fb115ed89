// Package stt turns a bursty stream of short audio chunks into a stream
// of transcription results. Ingestion never blocks the network receive
// path; recognition runs on a single consumer goroutine per pipeline.
package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/metrics"
)

// ErrEngineUnavailable is surfaced through Err when the recognition
// engine fails repeatedly and the pipeline shuts down.
var ErrEngineUnavailable = errors.New("recognition engine unavailable")

// maxConsecutiveFailures is the number of back-to-back engine errors
// treated as a fatal loss of the recognition capability.
const maxConsecutiveFailures = 5

// Config carries the pipeline tunables. The values have no contractual
// meaning beyond what the deployment chooses.
type Config struct {
	QueueCapacity int
	IdleTimeout   time.Duration
	Audio         repositories.AudioConfig
}

// Pipeline is a bounded queue with a single recognition consumer. One
// producer (the connection's receive loop) and one consumer own the
// queue; results flow out through Results.
type Pipeline struct {
	engine  repositories.SpeechToText
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	queue   chan entities.AudioChunk
	results chan entities.TranscriptionResult
	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}

	mu  sync.Mutex
	err error
}

// New creates a pipeline around the given recognition engine.
func New(engine repositories.SpeechToText, config Config, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = 50
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 5 * time.Second
	}
	return &Pipeline{
		engine:  engine,
		config:  config,
		logger:  logger,
		metrics: m,
		queue:   make(chan entities.AudioChunk, config.QueueCapacity),
		results: make(chan entities.TranscriptionResult, 16),
		stop:    make(chan struct{}),
	}
}

// Ingest appends a chunk to the queue. When the queue is full the chunk
// is dropped and counted; the call returns immediately either way.
func (p *Pipeline) Ingest(chunk entities.AudioChunk) {
	select {
	case p.queue <- chunk:
		p.metrics.ChunksIngested.Inc()
	default:
		p.dropped.Add(1)
		p.metrics.ChunksDropped.Inc()
		p.logger.Warn("audio queue full, dropping chunk",
			zap.Int("size", len(chunk.Payload)),
			zap.Uint64("totalDropped", p.dropped.Load()))
	}
}

// Dropped returns the number of chunks discarded because the queue was full.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Results returns the stream of transcription results. The channel is
// closed when the pipeline stops; check Err afterwards to distinguish a
// clean shutdown from an engine failure.
func (p *Pipeline) Results() <-chan entities.TranscriptionResult {
	return p.results
}

// Err reports why the pipeline stopped. Nil after a clean Close.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start launches the recognition consumer. Subsequent calls are no-ops.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.consume(ctx)
	})
}

// Close stops the consumer loop. Safe to call multiple times.
func (p *Pipeline) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Pipeline) consume(ctx context.Context) {
	defer close(p.results)

	idle := time.NewTimer(p.config.IdleTimeout)
	defer idle.Stop()

	consecutiveFailures := 0

	for {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.config.IdleTimeout)

		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-idle.C:
			// Liveness check only; an empty queue is not an error.
			continue
		case chunk := <-p.queue:
			result, err := p.transcribe(ctx, chunk)
			if err != nil {
				consecutiveFailures++
				p.metrics.TranscriptionFailures.Inc()
				p.logger.Error("transcription failed",
					zap.Int("consecutiveFailures", consecutiveFailures),
					zap.Error(err))
				if consecutiveFailures >= maxConsecutiveFailures {
					p.fail(ErrEngineUnavailable)
					return
				}
				continue
			}
			consecutiveFailures = 0
			if result == nil {
				continue
			}
			select {
			case p.results <- *result:
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			}
		}
	}
}

// transcribe runs one chunk through the engine. A nil result with nil
// error means the engine heard nothing; the chunk is consumed either way.
func (p *Pipeline) transcribe(ctx context.Context, chunk entities.AudioChunk) (*entities.TranscriptionResult, error) {
	start := time.Now()

	transcription, err := p.engine.Transcribe(ctx, chunk.Payload, p.config.Audio)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	p.metrics.TranscriptionDuration.Observe(elapsed.Seconds())

	text := transcription.Text()
	if text == "" {
		return nil, nil
	}

	// Average the per-segment log-probability remaps. The score orders
	// results by plausibility; it is not a calibrated probability.
	var confidence float64
	for _, seg := range transcription.Segments {
		confidence += entities.ConfidenceFromLogProb(seg.AvgLogProb)
	}
	if n := len(transcription.Segments); n > 0 {
		confidence /= float64(n)
	}

	p.metrics.TranscriptionSuccesses.Inc()
	p.metrics.TranscriptionConfidence.Observe(confidence)

	return &entities.TranscriptionResult{
		Text:           text,
		Confidence:     confidence,
		IsFinal:        chunk.IsFinal,
		Timestamp:      float64(chunk.ReceivedAt.UnixNano()) / float64(time.Second),
		ProcessingTime: elapsed.Seconds(),
	}, nil
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}
