// Package llm provides generative responders behind the
// repositories.Responder interface.
package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sorivoice/server/domain/repositories"
)

const systemInstruction = "당신은 따뜻하고 다정한 한국어 음성 대화 상대입니다. " +
	"짧고 자연스러운 한 문장으로 답하세요. 목록이나 마크다운은 사용하지 마세요."

// GeminiResponder generates replies through Google's Gemini API.
type GeminiResponder struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.Responder = (*GeminiResponder)(nil)

// NewGeminiResponder creates a responder. GEMINI_API_KEY must be set.
func NewGeminiResponder(ctx context.Context, logger *zap.Logger) (*GeminiResponder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiResponder{
		client: client,
		logger: logger,
		model:  "gemini-2.0-flash",
	}, nil
}

// Reply implements repositories.Responder.
func (g *GeminiResponder) Reply(ctx context.Context, utterance string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(utterance),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	g.logger.Debug("gemini reply generated",
		zap.Int("utteranceLen", len(utterance)),
		zap.Int("replyLen", len(text)))

	return text, nil
}
