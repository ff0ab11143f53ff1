package judge

// #region imports
import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// #endregion

// #region genai-judge

// GenAIJudge scores prompts with Google's Gemini API. Alternative to the
// subprocess judge for hosts without a local assistant CLI.
type GenAIJudge struct {
	client *genai.Client
	model  string
}

// NewGenAIJudge creates a Gemini-backed judge. The API key is injected,
// never read from ambient process state.
func NewGenAIJudge(ctx context.Context, apiKey, model string) (*GenAIJudge, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai judge requires an API key")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIJudge{client: client, model: model}, nil
}

// Judge sends the prompt and returns the model's text response.
func (j *GenAIJudge) Judge(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.Models.GenerateContent(ctx, j.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return resp.Text(), nil
}

// #endregion
