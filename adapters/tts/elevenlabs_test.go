package tts

import (
	"testing"

	"go.uber.org/zap"

	"github.com/sorivoice/server/domain/entities"
)

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"missing key", ElevenLabsConfig{}, true},
		{"valid minimal", ElevenLabsConfig{APIKey: "key"}, false},
		{"stability out of range", ElevenLabsConfig{APIKey: "key", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "key", Clarity: -0.1}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "key", ChunkSize: -1}, true},
		{"full valid", ElevenLabsConfig{APIKey: "key", Stability: 0.4, Clarity: 0.9, ChunkSize: 2048}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewElevenLabsFactoryAppliesDefaults(t *testing.T) {
	factory, err := NewElevenLabsFactory(ElevenLabsConfig{APIKey: "key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if factory.config.APIBaseURL != defaultAPIBaseURL {
		t.Errorf("base url = %q", factory.config.APIBaseURL)
	}
	if factory.config.ChunkSize != defaultChunkSize {
		t.Errorf("chunk size = %d", factory.config.ChunkSize)
	}
	if factory.config.ModelID != defaultModelID {
		t.Errorf("model id = %q", factory.config.ModelID)
	}
}

func TestNewSynthesizerMapsSpeakerVoices(t *testing.T) {
	factory, err := NewElevenLabsFactory(ElevenLabsConfig{
		APIKey:        "key",
		SpeakerVoices: map[int]string{2: "voice-two"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	synth, err := factory.NewSynthesizer(entities.VoiceConfig{SpeakerID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := synth.(*elevenLabsSynthesizer).voiceID; got != "voice-two" {
		t.Errorf("voice id = %q, want voice-two", got)
	}

	// Unknown speaker ids fall back to the default voice.
	synth, _ = factory.NewSynthesizer(entities.VoiceConfig{SpeakerID: 99})
	if got := synth.(*elevenLabsSynthesizer).voiceID; got != defaultVoiceID {
		t.Errorf("voice id = %q, want default", got)
	}
}
