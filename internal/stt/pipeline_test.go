package stt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/metrics"
)

type fakeEngine struct {
	calls atomic.Int64
	fn    func(call int64) (*repositories.Transcription, error)
}

func (f *fakeEngine) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	return f.fn(f.calls.Add(1))
}

func newTestPipeline(t *testing.T, engine repositories.SpeechToText, config Config) *Pipeline {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return New(engine, config, m, zap.NewNop())
}

func chunk(size int) entities.AudioChunk {
	return entities.AudioChunk{Payload: make([]byte, size), ReceivedAt: time.Now()}
}

func TestIngestDropsWhenQueueFull(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return &repositories.Transcription{}, nil
	}}
	p := newTestPipeline(t, engine, Config{QueueCapacity: 3})

	// Consumer not started: the queue fills and stays full.
	for i := 0; i < 5; i++ {
		p.Ingest(chunk(100))
	}

	if got := p.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
}

func TestIngestNeverBlocks(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return &repositories.Transcription{}, nil
	}}
	p := newTestPipeline(t, engine, Config{QueueCapacity: 1})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Ingest(chunk(10))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Ingest blocked on a full queue")
	}
}

func TestResultsFlow(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return &repositories.Transcription{
			Segments: []repositories.TranscriptionSegment{
				{Text: "안녕하세요", AvgLogProb: -0.2},
			},
		}, nil
	}}
	p := newTestPipeline(t, engine, Config{QueueCapacity: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Close()

	in := chunk(100)
	in.IsFinal = true
	p.Ingest(in)

	select {
	case result := <-p.Results():
		if result.Text != "안녕하세요" {
			t.Errorf("text = %q", result.Text)
		}
		if diff := result.Confidence - 0.8; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("confidence = %v, want 0.8", result.Confidence)
		}
		if !result.IsFinal {
			t.Error("result should carry the chunk's final flag")
		}
	case <-time.After(time.Second):
		t.Fatal("no result within timeout")
	}
}

func TestConfidenceAveragedAcrossSegments(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return &repositories.Transcription{
			Segments: []repositories.TranscriptionSegment{
				{Text: "first ", AvgLogProb: -0.4},
				{Text: "second", AvgLogProb: 0},
			},
		}, nil
	}}
	p := newTestPipeline(t, engine, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Close()

	p.Ingest(chunk(100))

	select {
	case result := <-p.Results():
		if result.Text != "first second" {
			t.Errorf("text = %q, want joined segments", result.Text)
		}
		if diff := result.Confidence - 0.8; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("confidence = %v, want 0.8", result.Confidence)
		}
	case <-time.After(time.Second):
		t.Fatal("no result within timeout")
	}
}

func TestEmptyTranscriptionProducesNoResult(t *testing.T) {
	engine := &fakeEngine{fn: func(call int64) (*repositories.Transcription, error) {
		if call == 1 {
			return &repositories.Transcription{}, nil
		}
		return &repositories.Transcription{
			Segments: []repositories.TranscriptionSegment{{Text: "ok", AvgLogProb: 0}},
		}, nil
	}}
	p := newTestPipeline(t, engine, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Close()

	p.Ingest(chunk(10))
	p.Ingest(chunk(10))

	select {
	case result := <-p.Results():
		// The silent chunk is consumed without a result; the first
		// result comes from the second chunk.
		if result.Text != "ok" {
			t.Errorf("text = %q, want %q", result.Text, "ok")
		}
	case <-time.After(time.Second):
		t.Fatal("no result within timeout")
	}
}

func TestRepeatedEngineFailureShutsDown(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return nil, errors.New("engine exploded")
	}}
	p := newTestPipeline(t, engine, Config{QueueCapacity: 10})

	for i := 0; i < maxConsecutiveFailures; i++ {
		p.Ingest(chunk(10))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-p.Results():
			if !ok {
				if !errors.Is(p.Err(), ErrEngineUnavailable) {
					t.Errorf("err = %v, want ErrEngineUnavailable", p.Err())
				}
				return
			}
			t.Fatal("unexpected result from a failing engine")
		case <-deadline:
			t.Fatal("pipeline did not shut down after repeated failures")
		}
	}
}

func TestCleanCloseLeavesNoError(t *testing.T) {
	engine := &fakeEngine{fn: func(int64) (*repositories.Transcription, error) {
		return &repositories.Transcription{}, nil
	}}
	p := newTestPipeline(t, engine, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Close()

	select {
	case _, ok := <-p.Results():
		if ok {
			t.Fatal("expected closed results channel")
		}
	case <-time.After(time.Second):
		t.Fatal("results channel not closed after Close")
	}

	if err := p.Err(); err != nil {
		t.Errorf("err = %v, want nil after clean close", err)
	}
}
