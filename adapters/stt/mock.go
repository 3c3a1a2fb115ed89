package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/repositories"
)

// MockSpeechToText is a placeholder recognition engine for local
// development without cloud credentials. The transcript depends only on
// the chunk size.
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock recognition engine.
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText.
func (s *MockSpeechToText) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audio)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	var text string
	switch {
	case len(audio) > 10000:
		text = "안녕하세요, 오늘 하루 이야기를 들려드리고 싶어요."
	case len(audio) > 5000:
		text = "들어주셔서 감사합니다."
	case len(audio) > 1000:
		text = "안녕하세요!"
	default:
		text = "네"
	}

	return &repositories.Transcription{
		Segments: []repositories.TranscriptionSegment{
			{Text: text, AvgLogProb: -0.15},
		},
		Language: config.Language,
	}, nil
}
