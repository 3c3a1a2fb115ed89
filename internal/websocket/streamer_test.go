package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/metrics"
)

type fakeFactory struct {
	mu     sync.Mutex
	bound  []entities.VoiceConfig
	chunks [][]byte
	err    error
}

func (f *fakeFactory) NewSynthesizer(voice entities.VoiceConfig) (repositories.TextToSpeech, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.bound = append(f.bound, voice)
	return &fakeSynth{chunks: f.chunks}, nil
}

type fakeSynth struct {
	chunks [][]byte
	err    error
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan []byte, len(s.chunks))
	for _, chunk := range s.chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

func newTestStreamer(t *testing.T, factory repositories.TextToSpeechFactory) (*Hub, *AudioStreamer) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(m, zap.NewNop())
	streamer := NewAudioStreamer(hub, factory,
		entities.VoiceConfig{Language: "ko"}, m, zap.NewNop())
	return hub, streamer
}

func TestStreamFramesAudio(t *testing.T) {
	factory := &fakeFactory{chunks: [][]byte{{1, 2}, {3, 4}, {5}}}
	hub, streamer := newTestStreamer(t, factory)

	c := newTestClient("conn-1", hub, &countingHandler{}, 16)
	hub.Register(c)

	if err := streamer.Stream("conn-1", "안녕하세요"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frames []WriteData
	for len(c.send) > 0 {
		frames = append(frames, <-c.send)
	}

	if len(frames) != 5 {
		t.Fatalf("got %d frames, want start + 3 chunks + end", len(frames))
	}
	if frames[0].Type != websocket.TextMessage || string(frames[0].Payload) != FrameAudioStart {
		t.Errorf("first frame = %q", frames[0].Payload)
	}
	for i := 1; i <= 3; i++ {
		if frames[i].Type != websocket.BinaryMessage {
			t.Errorf("frame %d should be binary", i)
		}
	}
	if string(frames[4].Payload) != FrameAudioEnd {
		t.Errorf("last frame = %q", frames[4].Payload)
	}
}

func TestStreamToUnknownConnection(t *testing.T) {
	factory := &fakeFactory{}
	_, streamer := newTestStreamer(t, factory)

	err := streamer.Stream("missing", "text")
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestStreamSynthesisFailureSendsErrorFrame(t *testing.T) {
	factory := &fakeFactory{err: errors.New("no such voice")}
	hub, streamer := newTestStreamer(t, factory)

	c := newTestClient("conn-1", hub, &countingHandler{}, 16)
	hub.Register(c)

	if err := streamer.Stream("conn-1", "text"); err == nil {
		t.Fatal("expected error from failing factory")
	}

	select {
	case frame := <-c.send:
		if frame.Type != websocket.TextMessage {
			t.Error("error frame should be text")
		}
	default:
		t.Fatal("error frame not delivered")
	}
}

func TestSetVoiceIsPerConnection(t *testing.T) {
	factory := &fakeFactory{}
	hub, streamer := newTestStreamer(t, factory)

	a := newTestClient("conn-a", hub, &countingHandler{}, 4)
	b := newTestClient("conn-b", hub, &countingHandler{}, 4)
	hub.Register(a)
	hub.Register(b)

	if err := streamer.SetVoice("conn-a", entities.VoiceConfig{Language: "en", SpeakerID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := streamer.Voice("conn-a").Language; got != "en" {
		t.Errorf("conn-a language = %q, want en", got)
	}
	if got := streamer.Voice("conn-b").Language; got != "ko" {
		t.Errorf("conn-b language = %q, want default ko", got)
	}
}

func TestReleaseDropsVoiceBinding(t *testing.T) {
	factory := &fakeFactory{}
	_, streamer := newTestStreamer(t, factory)

	if err := streamer.SetVoice("conn-1", entities.VoiceConfig{Language: "en"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	streamer.Release("conn-1")

	if got := streamer.Voice("conn-1").Language; got != "ko" {
		t.Errorf("language after release = %q, want default ko", got)
	}
}
