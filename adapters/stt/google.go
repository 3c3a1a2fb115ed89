// Package stt provides speech recognition engines behind the
// repositories.SpeechToText interface.
package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/repositories"
)

// GoogleSpeechToText recognizes short audio chunks through the Google
// Cloud Speech-to-Text batch API. Credentials come from the usual
// GOOGLE_APPLICATION_CREDENTIALS environment.
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the engine, dialing the API once and
// reusing the client for every request.
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Transcribe recognizes one audio chunk. Google reports a calibrated
// confidence rather than a log-probability, so the score is shifted
// into log-prob space to match what the pipeline expects from engines
// that do report one.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(config.SampleRate),
			LanguageCode:    config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recognize request failed: %w", err)
	}

	transcription := &repositories.Transcription{Language: config.Language}
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		transcription.Segments = append(transcription.Segments, repositories.TranscriptionSegment{
			Text:       best.Transcript,
			AvgLogProb: float64(best.Confidence) - 1,
		})
	}

	g.logger.Debug("google recognition finished",
		zap.Int("audioBytes", len(audio)),
		zap.Int("segments", len(transcription.Segments)))

	return transcription, nil
}

// Close releases the underlying gRPC client.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// audioEncoding maps the configured encoding name onto the API enum.
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
