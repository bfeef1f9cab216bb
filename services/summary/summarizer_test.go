package summary

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/logger"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
	delay   time.Duration
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestBuildPromptLayers(t *testing.T) {
	prompt := BuildPrompt("the transcript", Options{Template: "## Key points", ExtraInstructions: "Answer in French"})

	base := strings.Index(prompt, baseInstruction)
	tmpl := strings.Index(prompt, "## Key points")
	extra := strings.Index(prompt, "Answer in French")
	body := strings.Index(prompt, "the transcript")

	assert.Equal(t, 0, base)
	assert.True(t, base < tmpl && tmpl < extra && extra < body, "layers out of order: %q", prompt)
}

func TestBuildPromptWithoutOptionalLayers(t *testing.T) {
	prompt := BuildPrompt("body", Options{})
	assert.NotContains(t, prompt, "template")
	assert.NotContains(t, prompt, "Additional instructions")
	assert.True(t, strings.HasSuffix(prompt, "body"))
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{reply: "summary"}
	s := NewSummarizer(gen, time.Second, logger.Discard())

	got, err := s.Summarize(context.Background(), "words", Options{})
	require.NoError(t, err)
	assert.Equal(t, "summary", got)
	assert.Len(t, gen.prompts, 1)
}

func TestSummarizeSurfacesBackendError(t *testing.T) {
	gen := &fakeGenerator{err: stderrors.New("quota exceeded for model")}
	s := NewSummarizer(gen, time.Second, logger.Discard())

	_, err := s.Summarize(context.Background(), "words", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDownstreamService))
	assert.Contains(t, err.Error(), "quota exceeded for model")
	assert.Len(t, gen.prompts, 1, "no retry")
}

func TestSummarizeTimeout(t *testing.T) {
	gen := &fakeGenerator{reply: "late", delay: time.Second}
	s := NewSummarizer(gen, 10*time.Millisecond, logger.Discard())

	_, err := s.Summarize(context.Background(), "words", Options{})
	assert.True(t, errors.IsKind(err, errors.KindDownstreamService))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractJoinsSummaries(t *testing.T) {
	gen := &fakeGenerator{reply: "final"}
	s := NewSummarizer(gen, time.Second, logger.Discard())

	got, err := s.Extract(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, "final", got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "one\n\n---\n\ntwo")
}

func TestExtractRequiresSummaries(t *testing.T) {
	s := NewSummarizer(&fakeGenerator{}, time.Second, logger.Discard())
	_, err := s.Extract(context.Background(), nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestNewGeneratorMissingKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), config.SummaryConfig{Provider: "openai"})
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewGenerator(context.Background(), config.SummaryConfig{Provider: "gemini"})
	assert.True(t, errors.IsConfiguration(err))

	gen, err := NewGenerator(context.Background(), config.SummaryConfig{Provider: "openai", OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", gen.Name())
}

func TestUnavailableKeepsConfigurationError(t *testing.T) {
	_, cfgErr := NewGenerator(context.Background(), config.SummaryConfig{Provider: "openai"})
	require.Error(t, cfgErr)

	s := NewSummarizer(Unavailable{Err: cfgErr}, 0, logger.Discard())
	_, err := s.Summarize(context.Background(), "text", Options{})
	assert.True(t, errors.IsConfiguration(err))
}

func TestTranslate(t *testing.T) {
	gen := &fakeGenerator{reply: " \"oolong tea brewing\"\n"}
	s := NewSummarizer(gen, time.Second, logger.Discard())

	got, err := s.Translate(context.Background(), "烏龍茶 沖泡", "en")
	require.NoError(t, err)
	assert.Equal(t, "oolong tea brewing", got)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasSuffix(gen.prompts[0], "烏龍茶 沖泡"))
	assert.Contains(t, gen.prompts[0], `"en"`)
}
