package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PatternResponder answers recognized utterances from the canned pool.
// It is the default Responder when no LLM backend is configured.
type PatternResponder struct {
	patterns *Patterns
	now      func() time.Time
}

// NewPatternResponder creates a responder backed by the given pool.
func NewPatternResponder(patterns *Patterns) *PatternResponder {
	return &PatternResponder{patterns: patterns, now: time.Now}
}

// Reply produces a short canned reply for the utterance.
func (r *PatternResponder) Reply(_ context.Context, utterance string) (string, error) {
	lower := strings.ToLower(utterance)

	switch {
	case strings.Contains(lower, "안녕") || strings.Contains(lower, "hello"):
		return "안녕하세요! 음성 대화 시스템입니다.", nil
	case strings.Contains(lower, "날씨") || strings.Contains(lower, "weather"):
		return r.patterns.Themed("weather"), nil
	case strings.Contains(lower, "이름") || strings.Contains(lower, "name"):
		return "저는 음성 대화 시스템입니다.", nil
	case strings.Contains(lower, "시간") || strings.Contains(lower, "time"):
		now := r.now()
		return fmt.Sprintf("현재 시간은 %d시 %d분입니다.", now.Hour(), now.Minute()), nil
	default:
		return "네, 잘 들었습니다. 다른 질문이 있으시면 말씀해 주세요.", nil
	}
}
