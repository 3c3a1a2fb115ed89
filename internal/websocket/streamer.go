package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
	"github.com/sorivoice/server/internal/metrics"
)

// AudioStreamer turns text into a framed run of binary audio chunks on a
// connection: an |AUDIO_START| text frame, the chunks, then |AUDIO_END|.
// Each connection owns its own synthesizer handle so voice changes never
// leak across connections.
type AudioStreamer struct {
	hub          *Hub
	factory      repositories.TextToSpeechFactory
	defaultVoice entities.VoiceConfig
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu     sync.Mutex
	synths map[string]*connSynthesizer
}

type connSynthesizer struct {
	synth repositories.TextToSpeech
	voice entities.VoiceConfig
}

// NewAudioStreamer creates a streamer over the given registry and
// synthesizer factory.
func NewAudioStreamer(
	hub *Hub,
	factory repositories.TextToSpeechFactory,
	defaultVoice entities.VoiceConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AudioStreamer {
	return &AudioStreamer{
		hub:          hub,
		factory:      factory,
		defaultVoice: defaultVoice,
		logger:       logger,
		metrics:      m,
		synths:       make(map[string]*connSynthesizer),
	}
}

// Stream synthesizes text and delivers it to the connection as framed
// audio. Cancellation is checked before every frame: once the connection
// dies no further frames are sent and the synthesis channel is drained
// to release the engine worker.
func (s *AudioStreamer) Stream(connID, text string) error {
	ctx, ok := s.hub.ConnContext(connID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, connID)
	}

	cs, err := s.synthesizer(connID)
	if err != nil {
		s.metrics.SynthesisFailures.Inc()
		s.sendError(connID, "speech synthesis unavailable")
		return err
	}

	audio, err := cs.synth.Synthesize(ctx, text)
	if err != nil {
		s.metrics.SynthesisFailures.Inc()
		s.sendError(connID, fmt.Sprintf("synthesis failed: %v", err))
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := s.hub.SendTo(connID, WriteData{Type: websocket.TextMessage, Payload: []byte(FrameAudioStart)}); err != nil {
		go drain(audio)
		return err
	}

	for chunk := range audio {
		select {
		case <-ctx.Done():
			go drain(audio)
			return fmt.Errorf("%w: stream cancelled for %s", ErrConnectionClosed, connID)
		default:
		}

		if err := s.hub.SendTo(connID, WriteData{Type: websocket.BinaryMessage, Payload: chunk}); err != nil {
			go drain(audio)
			return err
		}
		s.metrics.AudioFramesStreamed.Inc()
	}

	return s.hub.SendTo(connID, WriteData{Type: websocket.TextMessage, Payload: []byte(FrameAudioEnd)})
}

// SetVoice rebinds the connection's synthesizer to a new voice. Other
// connections keep their handles.
func (s *AudioStreamer) SetVoice(connID string, voice entities.VoiceConfig) error {
	synth, err := s.factory.NewSynthesizer(voice)
	if err != nil {
		return fmt.Errorf("failed to bind voice: %w", err)
	}

	s.mu.Lock()
	s.synths[connID] = &connSynthesizer{synth: synth, voice: voice}
	s.mu.Unlock()

	s.logger.Info("voice rebound",
		zap.String("connID", connID),
		zap.String("language", voice.Language),
		zap.Int("speakerID", voice.SpeakerID))
	return nil
}

// Voice returns the voice currently bound to the connection.
func (s *AudioStreamer) Voice(connID string) entities.VoiceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.synths[connID]; ok {
		return cs.voice
	}
	return s.defaultVoice
}

// Release drops the connection's synthesizer handle.
func (s *AudioStreamer) Release(connID string) {
	s.mu.Lock()
	delete(s.synths, connID)
	s.mu.Unlock()
}

// synthesizer returns the connection's handle, lazily binding the
// default voice.
func (s *AudioStreamer) synthesizer(connID string) (*connSynthesizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.synths[connID]; ok {
		return cs, nil
	}

	synth, err := s.factory.NewSynthesizer(s.defaultVoice)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	cs := &connSynthesizer{synth: synth, voice: s.defaultVoice}
	s.synths[connID] = cs
	return cs, nil
}

func (s *AudioStreamer) sendError(connID, message string) {
	if err := s.hub.SendJSON(connID, NewErrorMessage(message)); err != nil {
		s.logger.Warn("failed to deliver error frame", zap.String("connID", connID), zap.Error(err))
	}
}

// drain consumes the remainder of an abandoned synthesis channel so the
// engine worker can finish and release its resources.
func drain(ch <-chan []byte) {
	for range ch {
	}
}
