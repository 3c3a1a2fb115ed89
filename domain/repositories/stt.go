package repositories

import (
	"context"

	"github.com/sorivoice/server/domain/entities"
)

// AudioConfig describes the audio handed to the recognition engine.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// TranscriptionSegment is one recognized span with the engine's average
// log-probability for it.
type TranscriptionSegment struct {
	Text       string
	AvgLogProb float64
}

// Transcription is the raw engine output for one audio buffer.
type Transcription struct {
	Segments []TranscriptionSegment
	Language string
}

// Text joins all segment texts.
func (t *Transcription) Text() string {
	var out string
	for _, seg := range t.Segments {
		out += seg.Text
	}
	return out
}

// SpeechToText abstracts the speech recognition engine. Implementations
// consume one audio buffer per call; streaming is layered on top by the
// audio chunk pipeline.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, config AudioConfig) (*Transcription, error)
}

// TextToSpeech converts text into a stream of raw PCM chunks. The channel
// is closed when synthesis completes or fails; a failed synthesis closes
// the channel early.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)
}

// TextToSpeechFactory builds a synthesizer bound to one voice. Every
// connection owns its own handle; re-binding a voice must not affect other
// connections.
type TextToSpeechFactory interface {
	NewSynthesizer(voice entities.VoiceConfig) (TextToSpeech, error)
}

// Responder produces the reply text for a recognized user utterance.
type Responder interface {
	Reply(ctx context.Context, utterance string) (string, error)
}
