package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"google.golang.org/api/option"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
)

// Generator sends one prompt to a text model and returns its reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewGenerator builds the backend named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.SummaryConfig) (Generator, error) {
	const op = "summary.NewGenerator"

	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.Configuration(op, nil, "GEMINI_API_KEY is not set")
		}
		return NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.Configuration(op, nil, "OPENAI_API_KEY is not set")
		}
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, errors.Configuration(op, nil, fmt.Sprintf("unknown summary provider %q", cfg.Provider))
	}
}

type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	const op = "GeminiGenerator.New"

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Configuration(op, err, "failed to create Gemini client")
	}
	return &GeminiGenerator{
		client: client,
		model:  client.GenerativeModel(model),
		name:   model,
	}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini/" + g.name }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "GeminiGenerator.Generate"

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Downstream(op, err, "Gemini request failed: "+err.Error())
	}

	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// Only the first candidate with content is used.
		if b.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.Downstream(op, nil, "Gemini returned no content")
	}
	return text, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(openaioption.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai/" + g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "OpenAIGenerator.Generate"

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errors.Downstream(op, err, "OpenAI request failed: "+err.Error())
	}
	if len(completion.Choices) == 0 {
		return "", errors.Downstream(op, nil, "OpenAI returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errors.Downstream(op, nil, "OpenAI returned no content")
	}
	return text, nil
}

// Unavailable stands in for a backend that could not be configured. Every
// call fails with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", u.Err
}

func (u Unavailable) Name() string { return "unavailable" }
