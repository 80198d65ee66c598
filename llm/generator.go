// Package llm turns an assembled context prompt into a final answer
// text. Generation is optional: the pipeline degrades to returning the
// retrieved sources when no generator is configured.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/civium/ragline/helper"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Generator produces an answer text from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API to answer from the assembled
// context.
type GeminiGenerator struct {
	apiKey string
	model  string
}

// NewGeminiGenerator creates a generator for the given model. An empty
// model name falls back to DefaultGeminiModel, an empty api key to the
// GEMINI_API_KEY environment variable.
func NewGeminiGenerator(apiKey string, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, helper.NewError("gemini configuration", fmt.Errorf("missing api key"))
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{apiKey: apiKey, model: model}, nil
}

// Generate sends the prompt to the Gemini API and returns the answer
// text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", helper.NewError("create gemini client", err)
	}

	resp, err := client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", helper.NewError("generate content", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}
