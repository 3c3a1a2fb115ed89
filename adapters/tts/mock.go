package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
	"github.com/sorivoice/server/domain/repositories"
)

const mockChunkSize = 1024

// MockFactory builds synthesizers that emit silent PCM sized by text
// length. Useful for local development without an API key.
type MockFactory struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeechFactory = (*MockFactory)(nil)

// NewMockFactory creates a new mock synthesizer factory.
func NewMockFactory(logger *zap.Logger) *MockFactory {
	return &MockFactory{logger: logger}
}

// NewSynthesizer implements repositories.TextToSpeechFactory.
func (f *MockFactory) NewSynthesizer(voice entities.VoiceConfig) (repositories.TextToSpeech, error) {
	return &mockSynthesizer{voice: voice, logger: f.logger}, nil
}

type mockSynthesizer struct {
	voice  entities.VoiceConfig
	logger *zap.Logger
}

// Synthesize emits roughly 100 bytes of silence per character, chunked
// the way the real adapter chunks its response.
func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	m.logger.Info("Processing text-to-speech",
		zap.String("text", text),
		zap.String("language", m.voice.Language),
		zap.Int("speakerID", m.voice.SpeakerID))

	total := len(text) * 100
	out := make(chan []byte, 10)

	go func() {
		defer close(out)
		for sent := 0; sent < total; sent += mockChunkSize {
			n := mockChunkSize
			if rest := total - sent; rest < n {
				n = rest
			}
			select {
			case out <- make([]byte, n):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
