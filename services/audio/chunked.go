package audio

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/nijaru/yt-digest/errors"
)

// Splitter cuts a WAV file into fixed windows.
type Splitter interface {
	Split(ctx context.Context, wavPath, dir string, window time.Duration) ([]string, error)
}

// ChunkedTranscriber splits normalized audio into fixed windows,
// transcribes them concurrently and joins the text in window order.
type ChunkedTranscriber struct {
	splitter Splitter
	engine   Transcriber
	window   time.Duration
	workers  int
	logger   *logrus.Logger
}

func NewChunkedTranscriber(splitter Splitter, engine Transcriber, window time.Duration, workers int, logger *logrus.Logger) *ChunkedTranscriber {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ChunkedTranscriber{
		splitter: splitter,
		engine:   engine,
		window:   window,
		workers:  workers,
		logger:   logger,
	}
}

type chunkText struct {
	index int
	text  string
}

// Transcribe writes chunks next to wavPath; the caller owns that directory.
func (c *ChunkedTranscriber) Transcribe(ctx context.Context, wavPath, language string) (string, error) {
	const op = "ChunkedTranscriber.Transcribe"

	chunks, err := c.splitter.Split(ctx, wavPath, filepath.Join(filepath.Dir(wavPath), "chunks"), c.window)
	if err != nil {
		return "", err
	}

	logger := c.logger.WithFields(logrus.Fields{
		"audio":  filepath.Base(wavPath),
		"chunks": len(chunks),
	})
	logger.Debug("Transcribing chunks")

	p := pool.NewWithResults[chunkText]().
		WithContext(ctx).
		WithMaxGoroutines(c.workers).
		WithCancelOnError()

	for i, chunk := range chunks {
		p.Go(func(ctx context.Context) (chunkText, error) {
			text, err := c.engine.Transcribe(ctx, chunk, language)
			if err != nil {
				return chunkText{}, err
			}
			return chunkText{index: i, text: text}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return "", err
	}

	return joinChunks(results, len(chunks), op)
}

// joinChunks orders results by chunk index, since the pool returns them
// in completion order.
func joinChunks(results []chunkText, count int, op string) (string, error) {
	ordered := make([]string, count)
	for _, r := range results {
		ordered[r.index] = strings.TrimSpace(r.text)
	}

	parts := make([]string, 0, count)
	for _, text := range ordered {
		if text != "" {
			parts = append(parts, strings.Join(strings.Fields(text), " "))
		}
	}
	if len(parts) == 0 {
		return "", errors.Downstream(op, nil, "speech engine produced no text")
	}
	return strings.Join(parts, " "), nil
}
