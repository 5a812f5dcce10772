package reply

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const classificationPrompt = `
Analyze this comment and determine if it is offensive, religiously sensitive, or aggressive.
Comment: %s

Answer only with 'yes' or 'no'.
If the comment contains hate speech, offensive language, religious insults, aggressive behavior,
threats, or any content that could be considered harmful, answer 'yes'.
`

var _ Provider = (*GeminiProvider)(nil)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// ClassifyOffensive asks for a yes/no judgment; any "yes" in the answer counts as offensive.
func (g *GeminiProvider) ClassifyOffensive(ctx context.Context, text string) (bool, error) {
	answer, err := g.generate(ctx, fmt.Sprintf(classificationPrompt, text))
	if err != nil {
		return false, fmt.Errorf("classification failed: %w", err)
	}
	return IsAffirmative(answer), nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return text, nil
}

func (g *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("model %s returned no candidates", g.model)
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func IsAffirmative(answer string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(answer)), "yes")
}
