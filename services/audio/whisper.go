package audio

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/scripts"
)

// Transcriber turns one audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// WhisperTranscriber runs the whisper.cpp CLI. It holds no per-call state,
// so one instance serves every worker.
type WhisperTranscriber struct {
	runner scripts.Runner
	binary string
	model  string
	logger *logrus.Logger
}

func NewWhisperTranscriber(runner scripts.Runner, binary, model string, logger *logrus.Logger) *WhisperTranscriber {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WhisperTranscriber{runner: runner, binary: binary, model: model, logger: logger}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	const op = "WhisperTranscriber.Transcribe"

	textBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := buildWhisperArgs(w.model, audioPath, textBase, language)

	if _, err := w.runner.Run(ctx, w.binary, args...); err != nil {
		return "", errors.Downstream(op, err, "whisper transcription failed")
	}

	data, err := os.ReadFile(textBase + ".txt")
	if err != nil {
		return "", errors.Downstream(op, err, "whisper completed but transcript file is missing")
	}
	return CleanTranscript(string(data)), nil
}

func buildWhisperArgs(modelPath, audioPath, textBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
		"-np",
	}
	if lang := whisperLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// whisperLanguage reduces a BCP-47 tag to the primary subtag whisper
// expects. Empty and "auto" leave detection to the engine.
func whisperLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

var (
	segmentTimestamp = regexp.MustCompile(`\[\s*[\d:.]+s?\s*(-->|-)\s*[\d:.]+s?\s*\]`)
	lineBreaks       = regexp.MustCompile(`[\t ]*\n[\t ]*`)
	blankRuns        = regexp.MustCompile(`\n{2,}`)
)

// CleanTranscript strips segment timestamps and stray whitespace from
// speech engine output.
func CleanTranscript(raw string) string {
	text := segmentTimestamp.ReplaceAllString(raw, "")
	text = lineBreaks.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
