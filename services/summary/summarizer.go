package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
)

const (
	baseInstruction = "Analyze the following transcript and extract the information that is useful to the reader. " +
		"Present it as a structured, bulleted summary and keep it practical."

	extractInstruction = "Below are several analyses of related videos. Extract the most important information and " +
		"notable excerpts across all of them. Present the result as a concise, structured list."

	// SummarySeparator joins individual summaries for the extraction prompt.
	SummarySeparator = "\n\n---\n\n"
)

// Options shape a single summary prompt.
type Options struct {
	Template          string
	ExtraInstructions string
}

// Summarizer turns transcripts into summaries and summaries into one
// cross-video extraction. Each call is a single backend request.
type Summarizer struct {
	generator Generator
	timeout   time.Duration
	logger    *logrus.Logger
}

func NewSummarizer(generator Generator, timeout time.Duration, logger *logrus.Logger) *Summarizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Summarizer{generator: generator, timeout: timeout, logger: logger}
}

// BuildPrompt layers the base instruction, the optional template, the
// optional extra instructions and the transcript, in that order.
func BuildPrompt(transcript string, opts Options) string {
	var b strings.Builder
	b.WriteString(baseInstruction)

	if t := strings.TrimSpace(opts.Template); t != "" {
		b.WriteString("\n\nUse the following template for the output:\n")
		b.WriteString(t)
	}
	if extra := strings.TrimSpace(opts.ExtraInstructions); extra != "" {
		b.WriteString("\n\nAdditional instructions:\n")
		b.WriteString(extra)
	}

	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)
	return b.String()
}

func BuildExtractPrompt(summaries []string) string {
	return extractInstruction + "\n\n" + strings.Join(summaries, SummarySeparator)
}

func (s *Summarizer) Summarize(ctx context.Context, transcript string, opts Options) (string, error) {
	const op = "Summarizer.Summarize"

	if strings.TrimSpace(transcript) == "" {
		return "", errors.InvalidInput(op, nil, "transcript is empty")
	}
	return s.generate(ctx, op, BuildPrompt(transcript, opts))
}

// Extract synthesizes one document from every summary.
func (s *Summarizer) Extract(ctx context.Context, summaries []string) (string, error) {
	const op = "Summarizer.Extract"

	if len(summaries) == 0 {
		return "", errors.InvalidInput(op, nil, "no summaries to extract from")
	}
	return s.generate(ctx, op, BuildExtractPrompt(summaries))
}

// BuildTranslatePrompt asks for a bare translation of a search query.
func BuildTranslatePrompt(text, language string) string {
	return fmt.Sprintf("Translate this YouTube search query into the language with code %q. "+
		"Reply with the translated query only.\n\n%s", language, text)
}

// Translate renders a short text, such as a search query, in language.
func (s *Summarizer) Translate(ctx context.Context, text, language string) (string, error) {
	const op = "Summarizer.Translate"

	if strings.TrimSpace(text) == "" {
		return "", errors.InvalidInput(op, nil, "text is empty")
	}
	translated, err := s.generate(ctx, op, BuildTranslatePrompt(text, language))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(translated), `"`), nil
}

func (s *Summarizer) generate(ctx context.Context, op, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt)
	logger := s.logger.WithFields(logrus.Fields{
		"op":       op,
		"backend":  s.generator.Name(),
		"prompt":   len(prompt),
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		logger.WithError(err).Warn("Generation failed")
		if errors.IsKind(err, errors.KindDownstreamService) || errors.IsConfiguration(err) {
			return "", err
		}
		return "", errors.Downstream(op, err, err.Error())
	}

	logger.WithField("chars", len(text)).Debug("Generation complete")
	return text, nil
}
