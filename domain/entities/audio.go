package entities

import "time"

// AudioChunk is one short slice of audio received from a client. Immutable
// once created; consumed exactly once by the recognition worker.
type AudioChunk struct {
	Payload    []byte
	SampleRate int
	ReceivedAt time.Time
	IsFinal    bool
}

// TranscriptionResult is the recognition output for a single chunk.
type TranscriptionResult struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	IsFinal        bool    `json:"is_final"`
	Timestamp      float64 `json:"timestamp"`
	ProcessingTime float64 `json:"processing_time"`
}

// ConfidenceFromLogProb remaps a Whisper-style average log-probability in
// [-1, 0] onto [0, 1]. The result is a heuristic score useful for relative
// ordering, not a calibrated probability.
func ConfidenceFromLogProb(avgLogProb float64) float64 {
	c := avgLogProb + 1
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// VoiceConfig selects the voice for speech synthesis. A connection owns
// one synthesizer handle per VoiceConfig; changing the voice rebuilds the
// handle for that connection only.
type VoiceConfig struct {
	Language  string  `json:"language"`
	SpeakerID int     `json:"speaker_id"`
	Speed     float64 `json:"speed"`
}
